package rank

import (
	"math"
	"sort"
	"testing"

	"github.com/mohammed-shakir/bikeshop-proximity/internal/core/model"
)

func strp(s string) *string { return &s }

func shopAt(name, lat, lon string) model.Shop {
	s := model.Shop{Name: name, Status: model.StatusApproved}
	if lat != "" {
		s.Lat = strp(lat)
	}
	if lon != "" {
		s.Lon = strp(lon)
	}
	return s
}

func TestHaversine_SamePointIsZero(t *testing.T) {
	pts := [][2]float64{{0, 0}, {45.5, -73.6}, {-33.9, 151.2}, {89.9, 179.9}, {-90, -180}}
	for _, p := range pts {
		if d := HaversineKm(p[0], p[1], p[0], p[1]); d != 0 {
			t.Fatalf("distance to self for %v = %v", p, d)
		}
	}
}

func TestHaversine_Symmetric(t *testing.T) {
	a := [2]float64{45.5236, -73.5830}
	b := [2]float64{43.6532, -79.3832}
	ab := HaversineKm(a[0], a[1], b[0], b[1])
	ba := HaversineKm(b[0], b[1], a[0], a[1])
	if math.Abs(ab-ba) > 1e-9 {
		t.Fatalf("asymmetric: %v vs %v", ab, ba)
	}
	// Montreal to Toronto is ~504 km
	if ab < 495 || ab > 515 {
		t.Fatalf("unexpected Montreal-Toronto distance %v", ab)
	}
}

func TestHaversine_OneDegreeLatitude(t *testing.T) {
	d := HaversineKm(0, 0, 1, 0)
	want := EarthRadiusKm * math.Pi / 180
	if math.Abs(d-want) > 1e-6 {
		t.Fatalf("got %v want %v", d, want)
	}
}

func TestFilterAndRank_ExcludesFarAndMalformed(t *testing.T) {
	shops := []model.Shop{
		shopAt("far", "45.40", "-73.20"),
		shopAt("near", "45.52", "-73.58"),
		shopAt("nolat", "", "-73.58"),
		shopAt("nolon", "45.52", ""),
		shopAt("nan", "abc", "-73.58"),
		shopAt("nanstr", "NaN", "-73.58"),
		shopAt("blank", "  ", "-73.58"),
	}

	got := FilterAndRank(shops, 45.5236, -73.5830, 15)
	if len(got) != 1 || got[0].Name != "near" {
		t.Fatalf("got %+v want only near", got)
	}
	if got[0].Distance == nil || *got[0].Distance > 15 {
		t.Fatalf("bad distance %v", got[0].Distance)
	}
}

func TestFilterAndRank_SortedAndWithinRadius(t *testing.T) {
	shops := []model.Shop{
		shopAt("c", "45.60", "-73.60"),
		shopAt("a", "45.5236", "-73.5830"),
		shopAt("b", "45.55", "-73.58"),
		shopAt("z", "46.80", "-71.20"),
	}
	radius := 20.0
	got := FilterAndRank(shops, 45.5236, -73.5830, radius)
	if len(got) != 3 {
		t.Fatalf("len=%d want 3", len(got))
	}
	if !sort.SliceIsSorted(got, func(i, j int) bool { return *got[i].Distance < *got[j].Distance }) {
		t.Fatalf("not sorted: %+v", got)
	}
	for _, r := range got {
		if *r.Distance > radius {
			t.Fatalf("%s exceeds radius: %v", r.Name, *r.Distance)
		}
	}
	if got[0].Name != "a" || *got[0].Distance != 0 {
		t.Fatalf("first=%s dist=%v", got[0].Name, *got[0].Distance)
	}
}

func TestFilterAndRank_TiesKeepInputOrder(t *testing.T) {
	shops := []model.Shop{
		shopAt("first", "45.53", "-73.58"),
		shopAt("second", "45.53", "-73.58"),
		shopAt("third", "45.53", "-73.58"),
	}
	got := FilterAndRank(shops, 45.5236, -73.5830, 15)
	for i, want := range []string{"first", "second", "third"} {
		if got[i].Name != want {
			t.Fatalf("pos %d=%s want %s", i, got[i].Name, want)
		}
	}
}

func TestFilterAndRank_InclusiveBoundary(t *testing.T) {
	// one degree of latitude north of the origin
	oneDeg := EarthRadiusKm * math.Pi / 180
	shops := []model.Shop{shopAt("edge", "1", "0")}
	got := FilterAndRank(shops, 0, 0, HaversineKm(0, 0, 1, 0))
	if len(got) != 1 {
		t.Fatalf("boundary shop must be kept, radius %v", oneDeg)
	}
}

func TestFilterAndRank_DefaultRadius(t *testing.T) {
	shops := []model.Shop{
		shopAt("ten", "45.6135", "-73.5830"),
		shopAt("twenty", "45.7035", "-73.5830"),
	}
	got := FilterAndRank(shops, 45.5236, -73.5830, 0)
	if len(got) != 1 || got[0].Name != "ten" {
		t.Fatalf("default radius should keep only ten, got %+v", got)
	}
}

func TestFilterAndRank_PreservesShopFields(t *testing.T) {
	s := shopAt("keep", "45.52", "-73.58")
	s.ID = 42
	s.Address = "123 av. du Mont-Royal E"
	s.Repair = true
	got := FilterAndRank([]model.Shop{s}, 45.5236, -73.5830, 15)
	if len(got) != 1 || got[0].ID != 42 || got[0].Address != s.Address || !got[0].Repair {
		t.Fatalf("fields lost: %+v", got)
	}
}

func TestRound1_HalfUp(t *testing.T) {
	cases := map[float64]float64{
		1.25:  1.3,
		1.24:  1.2,
		0.05:  0.1,
		14.96: 15.0,
		0:     0,
	}
	for in, want := range cases {
		if got := Round1(in); math.Abs(got-want) > 1e-9 {
			t.Fatalf("Round1(%v)=%v want %v", in, got, want)
		}
	}
}
