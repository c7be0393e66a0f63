package cacheredis

import (
	"testing"

	"github.com/adred-codev/pixelcanvas/domain"
)

func TestKeyBuilderShapes(t *testing.T) {
	k := KeyBuilder{Root: "pixelcanvas", Env: "dev"}
	coord := domain.TileCoord{X: -3, Y: 7}

	cases := []struct {
		name string
		got  string
		want string
	}{
		{"current", k.Current("w1", coord), "pixelcanvas:dev:tile:v3:w1:-3:7:current"},
		{"palette", k.Palette("w1", coord, 5), "pixelcanvas:dev:tile:v3:w1:-3:7:palette:v5"},
		{"webp", k.WebP("w1", coord, 5), "pixelcanvas:dev:tile:v3:w1:-3:7:webp:v5"},
		{"missing", k.MissingSentinel("w1", coord), "pixelcanvas:dev:tile:v3:w1:-3:7:exists:false"},
		{"namespace prefix", k.NamespacePrefix("w1"), "pixelcanvas:dev:tile:v3:w1:*"},
		{"subscription zset", k.SubscriptionZSet("w1", "ip1"), "pixelcanvas:dev:sub:v3:w1:ip1"},
		{"subscription refcount", k.SubscriptionRefcount("w1", "ip1"), "pixelcanvas:dev:sub:v3:w1:ip1:cnt"},
	}
	for _, tc := range cases {
		if tc.got != tc.want {
			t.Errorf("%s: got %q, want %q", tc.name, tc.got, tc.want)
		}
	}
}

func TestPaletteEncodeDecodeRoundTrip(t *testing.T) {
	buf := []int16{-1, 0, 1, 255, -1, 32767, -32768}
	encoded := encodePalette(buf)
	if len(encoded) != len(buf)*2 {
		t.Fatalf("encoded length = %d, want %d", len(encoded), len(buf)*2)
	}
	decoded := decodePalette(encoded)
	if len(decoded) != len(buf) {
		t.Fatalf("decoded length = %d, want %d", len(decoded), len(buf))
	}
	for i := range buf {
		if decoded[i] != buf[i] {
			t.Fatalf("decoded[%d] = %d, want %d", i, decoded[i], buf[i])
		}
	}
}
