package regioncode

import "testing"

func TestProvinceCode(t *testing.T) {
	if got := ProvinceCode("서울특별시"); got != "1100000000" {
		t.Errorf("expected 1100000000, got %s", got)
	}
	if got := ProvinceCode("없는도"); got != "" {
		t.Errorf("expected empty for unknown province, got %s", got)
	}
}

func TestDistrictCode(t *testing.T) {
	cases := []struct {
		sido, sigungu, want string
	}{
		{"서울특별시", "강남구", "11680"},
		{"경기도", "성남시", "41130"},
		{"부산광역시", "해운대구", "26350"},
		{"세종특별자치시", "세종시", "36110"},
		{"서울특별시", "강남시", ""},
		{"강원특별자치도", "춘천시", ""},
	}
	for _, c := range cases {
		if got := DistrictCode(c.sido, c.sigungu); got != c.want {
			t.Errorf("DistrictCode(%s, %s) = %s, want %s", c.sido, c.sigungu, got, c.want)
		}
	}
}

func TestDongCode(t *testing.T) {
	if got := DongCode("서울특별시", "강남구", "대치동"); got != "1168010600" {
		t.Errorf("expected dong-level code, got %s", got)
	}
	// unknown dong falls back to padded district code
	if got := DongCode("서울특별시", "마포구", "합정동"); got != "1144000000" {
		t.Errorf("expected padded district fallback, got %s", got)
	}
	if got := DongCode("서울특별시", "강남구", ""); got != "1168000000" {
		t.Errorf("expected padded district code for empty dong, got %s", got)
	}
	if got := DongCode("제주특별자치도", "제주시", "애월읍"); got != "" {
		t.Errorf("expected empty for unregistered district, got %s", got)
	}
}
