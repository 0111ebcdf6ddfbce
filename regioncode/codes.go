// Package regioncode holds the static Korean administrative code registry:
// 10-digit legal dong codes (법정동코드) as the listing portal's cortarNo and
// the appraisal source expect them, and their 5-digit district prefixes as
// the transactions API expects them.
package regioncode

// ProvinceCode returns the 10-digit root code for a province (시/도) name,
// or "" when unknown.
func ProvinceCode(sido string) string {
	return provinceCodes[sido]
}

// DistrictCode returns the 5-digit LAWD_CD for a province and district
// (시/군/구) pair, or "" when unknown.
func DistrictCode(sido, sigungu string) string {
	m, ok := districtCodes[sido]
	if !ok {
		return ""
	}
	return m[sigungu]
}

// DongCode returns the 10-digit dong-level code when a dong name is given
// and registered; otherwise it falls back to the district code padded to
// 10 digits. Returns "" when nothing resolves.
func DongCode(sido, sigungu, dong string) string {
	if dong != "" {
		if code := dongCodes[sido][sigungu][dong]; code != "" {
			return code
		}
	}
	if d := DistrictCode(sido, sigungu); d != "" {
		return d + "00000"
	}
	return ""
}

// Districts returns the district names registered for a province, in no
// particular order.
func Districts(sido string) []string {
	m := districtCodes[sido]
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	return names
}

var provinceCodes = map[string]string{
	"서울특별시":     "1100000000",
	"부산광역시":     "2600000000",
	"대구광역시":     "2700000000",
	"인천광역시":     "2800000000",
	"광주광역시":     "2900000000",
	"대전광역시":     "3000000000",
	"울산광역시":     "3100000000",
	"세종특별자치시": "3600000000",
	"경기도":        "4100000000",
	"강원특별자치도": "4200000000",
	"충청북도":      "4300000000",
	"충청남도":      "4400000000",
	"전북특별자치도": "4500000000",
	"전라남도":      "4600000000",
	"경상북도":      "4700000000",
	"경상남도":      "4800000000",
	"제주특별자치도": "5000000000",
}

var districtCodes = map[string]map[string]string{
	"서울특별시": {
		"종로구": "11110", "중구": "11140", "용산구": "11170", "성동구": "11200",
		"광진구": "11215", "동대문구": "11230", "중랑구": "11260", "성북구": "11290",
		"강북구": "11305", "도봉구": "11320", "노원구": "11350", "은평구": "11380",
		"서대문구": "11410", "마포구": "11440", "양천구": "11470", "강서구": "11500",
		"구로구": "11530", "금천구": "11545", "영등포구": "11560", "동작구": "11590",
		"관악구": "11620", "서초구": "11650", "강남구": "11680", "송파구": "11710",
		"강동구": "11740",
	},
	"경기도": {
		"수원시": "41110", "성남시": "41130", "의정부시": "41150", "안양시": "41170",
		"부천시": "41190", "광명시": "41210", "평택시": "41220", "동두천시": "41250",
		"안산시": "41270", "고양시": "41280", "과천시": "41290", "구리시": "41310",
		"남양주시": "41360", "오산시": "41370", "시흥시": "41390", "군포시": "41410",
		"의왕시": "41430", "하남시": "41450", "용인시": "41460", "파주시": "41480",
		"이천시": "41500", "안성시": "41550", "김포시": "41570", "화성시": "41590",
		"광주시": "41610", "양주시": "41630", "포천시": "41650", "여주시": "41670",
	},
	"인천광역시": {
		"중구": "28110", "동구": "28140", "미추홀구": "28177", "연수구": "28185",
		"남동구": "28200", "부평구": "28237", "계양구": "28245", "서구": "28260",
	},
	"부산광역시": {
		"중구": "26110", "서구": "26140", "동구": "26170", "영도구": "26200",
		"부산진구": "26230", "동래구": "26260", "남구": "26290", "북구": "26320",
		"해운대구": "26350", "사하구": "26380", "금정구": "26410", "강서구": "26440",
		"연제구": "26470", "수영구": "26500", "사상구": "26530", "기장군": "26710",
	},
	"대구광역시": {
		"중구": "27110", "동구": "27140", "서구": "27170", "남구": "27200",
		"북구": "27230", "수성구": "27260", "달서구": "27290", "달성군": "27710",
	},
	"광주광역시": {
		"동구": "29110", "서구": "29140", "남구": "29155", "북구": "29170",
		"광산구": "29200",
	},
	"대전광역시": {
		"동구": "30110", "중구": "30140", "서구": "30170", "유성구": "30200",
		"대덕구": "30230",
	},
	"세종특별자치시": {
		"세종시": "36110",
	},
	"울산광역시": {
		"중구": "31110", "남구": "31140", "동구": "31170", "북구": "31200",
		"울주군": "31710",
	},
}

// Dong-level codes, registered where KB collection has been run so far.
// Districts without an entry fall back to the padded district code.
var dongCodes = map[string]map[string]map[string]string{
	"서울특별시": {
		"강남구": {
			"역삼동": "1168010100", "개포동": "1168010300", "청담동": "1168010400",
			"삼성동": "1168010500", "대치동": "1168010600", "신사동": "1168010700",
			"논현동": "1168010800", "압구정동": "1168011000", "세곡동": "1168011100",
			"자곡동": "1168011200", "율현동": "1168011300", "일원동": "1168011400",
			"수서동": "1168011500", "도곡동": "1168011800",
		},
		"서초구": {
			"방배동": "1165010100", "양재동": "1165010200", "우면동": "1165010300",
			"잠원동": "1165010600", "반포동": "1165010700", "서초동": "1165010800",
			"내곡동": "1165010900", "신원동": "1165011100",
		},
		"송파구": {
			"잠실동": "1171010100", "신천동": "1171010200", "풍납동": "1171010300",
			"송파동": "1171010400", "석촌동": "1171010500", "삼전동": "1171010600",
			"가락동": "1171010700", "문정동": "1171010800", "장지동": "1171010900",
			"방이동": "1171011100", "오금동": "1171011200", "거여동": "1171011300",
			"마천동": "1171011400",
		},
	},
}
