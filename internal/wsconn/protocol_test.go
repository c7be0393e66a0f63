package wsconn

import (
	"encoding/json"
	"testing"

	"github.com/adred-codev/pixelcanvas/domain"
)

// TestTileVersionFrameVersionIsString guards spec.md §6's wire contract:
// the outbound tile-version frame carries version as a string, not a JSON
// number, to avoid float64 precision loss on large u64 values in clients.
func TestTileVersionFrameVersionIsString(t *testing.T) {
	f := TileVersionFrame{Type: TypeTileVersion, X: 1, Y: -1, Version: "18446744073709551615"}
	b, err := json.Marshal(f)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var raw map[string]any
	if err := json.Unmarshal(b, &raw); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	version, ok := raw["version"].(string)
	if !ok {
		t.Fatalf("version field decoded as %T, want string", raw["version"])
	}
	if version != "18446744073709551615" {
		t.Fatalf("version = %q, want %q", version, "18446744073709551615")
	}
}

func TestInboundFrameDispatchByType(t *testing.T) {
	raw := `{"type":"subscribe","tiles":[{"x":1,"y":2},{"x":-3,"y":4}]}`
	var f InboundFrame
	if err := json.Unmarshal([]byte(raw), &f); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if f.Type != TypeSubscribe {
		t.Fatalf("Type = %q, want %q", f.Type, TypeSubscribe)
	}
	if len(f.Tiles) != 2 {
		t.Fatalf("len(Tiles) = %d, want 2", len(f.Tiles))
	}
	if toCoord(f.Tiles[0]) != (domain.TileCoord{X: 1, Y: 2}) {
		t.Fatalf("Tiles[0] = %v, want {1 2}", f.Tiles[0])
	}
}

func TestToXYToCoordRoundTrip(t *testing.T) {
	c := domain.TileCoord{X: -42, Y: 7}
	if got := toCoord(toXY(c)); got != c {
		t.Fatalf("round trip = %v, want %v", got, c)
	}
}

func TestPingFrameHasNoTiles(t *testing.T) {
	var f InboundFrame
	if err := json.Unmarshal([]byte(`{"type":"ping"}`), &f); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if f.Type != TypePing {
		t.Fatalf("Type = %q, want %q", f.Type, TypePing)
	}
	if len(f.Tiles) != 0 {
		t.Fatalf("len(Tiles) = %d, want 0", len(f.Tiles))
	}
}
