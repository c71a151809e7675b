package tasks

import "strings"

// channelKeys maps the lookup service's channel keys to canonical channel
// names. It is the service's enumerated contract and deliberately does not go
// through the free-text alias resolver.
var channelKeys = map[string]string{
	"11st":                  "11번가",
	"akmall":                "AK몰",
	"aliexpress":            "알리익스프레스",
	"auction":               "옥션",
	"cafe24":                "카페24",
	"cjmall":                "CJ몰",
	"coupang":               "쿠팡",
	"globalauction":         "글로벌 옥션",
	"globalgmarket":         "글로벌 지마켓",
	"globalnaversmartstore": "글로벌 네이버스마트스토어",
	"gmarket":               "지마켓",
	"gsshop":                "GS Shop",
	"hmall":                 "Hmall",
	"hnsmall":               "홈앤쇼핑",
	"hwahae":                "화해",
	"kakaostyle":            "카카오스타일",
	"kakaotalkgift":         "카카오 선물하기",
	"kakaotalkshopping":     "카카오 쇼핑하기",
	"lotte":                 "롯데ON",
	"lotteimall":            "롯데i몰",
	"musinsa":               "무신사",
	"naverplusstore":        "네이버플러스스토어",
	"naversmartstore":       "네이버스마트스토어",
	"newhalfclub":           "Halfclub",
	"qoo10":                 "큐텐",
	"queenit":               "퀸잇",
	"rocketgrowth":          "로켓그로스",
	"sabangnet":             "사방넷",
	"shein":                 "쉬인",
	"ssg":                   "SSG",
	"temu":                  "테무",
	"wemakeprice":           "위메프",
}

// CanonicalForKey translates a lookup service channel key
func CanonicalForKey(key string) (string, bool) {
	name, ok := channelKeys[strings.ToLower(strings.TrimSpace(key))]
	return name, ok
}

// isPlaceholder reports listing ids that mean "not listed"
func isPlaceholder(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "", "-", "none", "null", "없음":
		return true
	}
	return false
}
