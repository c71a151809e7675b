// Package channels holds the marketplace channel registry and the rules for
// turning free-text channel names and sheet selectors into canonical names.
package channels

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"

	"promo-pipelines/types"
)

// ErrNoEnabledChannels signals a broken registry: a campaign kind with nothing to target
var ErrNoEnabledChannels = errors.New("no channels enabled for campaign kind")

// Channel is one marketplace channel and every name it is known by
type Channel struct {
	Name          string   // canonical name, used as the key everywhere
	DropdownLabel string   // label used in the sheet's channel dropdown
	DropdownGroup string   // shared dropdown label when one option covers several channels
	APIKey        string   // key in the product lookup service response
	ScrapeLabel   string   // column header in the back office product list
	UploaderLabel string   // option text in the promotion form's channel select
	Aliases       []string // extra short forms seen in sheets
	Product       bool
	Brand         bool
}

// EnabledFor reports whether the channel takes campaigns of the given kind
func (c Channel) EnabledFor(kind types.CampaignKind) bool {
	if kind == types.KindBrand {
		return c.Brand
	}
	return c.Product
}

func (c Channel) names() []string {
	names := []string{c.Name, c.DropdownLabel, c.APIKey, c.ScrapeLabel, c.UploaderLabel}
	return append(names, c.Aliases...)
}

// Directory is an immutable channel registry. Build it once and share it.
type Directory struct {
	channels  []Channel
	byName    map[string]int
	aliases   map[string]string
	ambiguous map[string][]string
	dropdown  map[types.CampaignKind]map[string][]string
}

// New indexes the given channels. Order is preserved and matters for scraping.
func New(channels []Channel) *Directory {
	d := &Directory{
		channels:  append([]Channel(nil), channels...),
		byName:    make(map[string]int, len(channels)),
		aliases:   make(map[string]string),
		ambiguous: make(map[string][]string),
		dropdown:  make(map[types.CampaignKind]map[string][]string),
	}

	for i, ch := range d.channels {
		if _, dup := d.byName[ch.Name]; !dup {
			d.byName[ch.Name] = i
		}
		for _, alias := range ch.names() {
			key := normalize(alias)
			if key == "" {
				continue
			}
			if owner, ok := d.aliases[key]; ok && owner != ch.Name {
				d.ambiguous[key] = appendUnique(d.ambiguous[key], owner, ch.Name)
				continue
			}
			d.aliases[key] = ch.Name
		}
	}
	for key, owners := range d.ambiguous {
		delete(d.aliases, key)
		zap.L().Warn("ambiguous channel alias ignored",
			zap.String("alias", key),
			zap.Strings("channels", owners))
	}

	for _, kind := range types.Kinds {
		table := make(map[string][]string)
		for _, ch := range d.channels {
			if !ch.EnabledFor(kind) {
				continue
			}
			label := ch.DropdownLabel
			if ch.DropdownGroup != "" {
				label = ch.DropdownGroup
			}
			if label == "" {
				continue
			}
			key := normalize(label)
			table[key] = append(table[key], ch.Name)
		}
		d.dropdown[kind] = table
	}

	return d
}

func appendUnique(list []string, values ...string) []string {
	for _, v := range values {
		found := false
		for _, existing := range list {
			if existing == v {
				found = true
				break
			}
		}
		if !found {
			list = append(list, v)
		}
	}
	return list
}

// Validate reports configuration defects. A kind with zero enabled channels
// yields an error wrapping ErrNoEnabledChannels.
func (d *Directory) Validate() error {
	var errs []error
	seen := make(map[string]bool, len(d.channels))
	for i, ch := range d.channels {
		switch {
		case strings.TrimSpace(ch.Name) == "":
			errs = append(errs, fmt.Errorf("channel %d: canonical name is empty", i))
			continue
		case strings.ContainsAny(ch.Name, "_/\\"):
			errs = append(errs, fmt.Errorf("channel %q: name must not contain '_' or path separators", ch.Name))
		}
		if seen[ch.Name] {
			errs = append(errs, fmt.Errorf("channel %q: duplicate canonical name", ch.Name))
		}
		seen[ch.Name] = true
	}
	for _, alias := range d.Ambiguous() {
		errs = append(errs, fmt.Errorf("alias %q: claimed by %v", alias, d.ambiguous[alias]))
	}
	for _, kind := range types.Kinds {
		if len(d.EnabledChannels(kind)) == 0 {
			errs = append(errs, fmt.Errorf("%w: %s", ErrNoEnabledChannels, kind))
		}
	}
	return errors.Join(errs...)
}

// Channels returns the registry in its configured order
func (d *Directory) Channels() []Channel {
	return append([]Channel(nil), d.channels...)
}

// Channel looks up a channel by canonical name
func (d *Directory) Channel(name string) (Channel, bool) {
	i, ok := d.byName[name]
	if !ok {
		return Channel{}, false
	}
	return d.channels[i], true
}

// EnabledChannels returns canonical names enabled for kind, in registry order
func (d *Directory) EnabledChannels(kind types.CampaignKind) []string {
	var names []string
	for _, ch := range d.channels {
		if ch.EnabledFor(kind) {
			names = append(names, ch.Name)
		}
	}
	return names
}

// DropdownTable returns the label to channel mapping for kind, keyed by the
// normalized label
func (d *Directory) DropdownTable(kind types.CampaignKind) map[string][]string {
	out := make(map[string][]string, len(d.dropdown[kind]))
	for label, names := range d.dropdown[kind] {
		out[label] = append([]string(nil), names...)
	}
	return out
}

// Ambiguous lists normalized aliases claimed by more than one channel
func (d *Directory) Ambiguous() []string {
	keys := make([]string, 0, len(d.ambiguous))
	for k := range d.ambiguous {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Default returns the production channel registry
func Default() *Directory {
	return New(defaultChannels)
}

func ch(name, dropdown, apiKey string, product, brand bool) Channel {
	return Channel{
		Name:          name,
		DropdownLabel: dropdown,
		APIKey:        apiKey,
		ScrapeLabel:   name,
		UploaderLabel: apiKey,
		Product:       product,
		Brand:         brand,
	}
}

var defaultChannels = func() []Channel {
	list := []Channel{
		ch("SSG", "SSG", "ssg", true, true),
		ch("지마켓", "지마켓", "gmarket", true, false),
		ch("옥션", "옥션", "auction", true, false),
		ch("11번가", "11번가", "11st", true, true),
		ch("쿠팡", "쿠팡", "coupang", true, true),
		ch("위메프", "위메프", "wemakeprice", false, false),
		ch("GS Shop", "GS샵", "gsshop", true, true),
		ch("롯데ON", "롯데온", "lotte", true, true),
		ch("AK몰", "AK몰", "akmall", false, false),
		ch("CJ몰", "CJ몰", "cjmall", true, true),
		ch("Halfclub", "하프클럽", "newhalfclub", true, true),
		ch("롯데i몰", "롯데i몰", "lotteimall", true, true),
		ch("네이버스마트스토어", "네이버스마트스토어", "naversmartstore", false, false),
		ch("글로벌 지마켓", "글로벌 지마켓", "globalgmarket", false, false),
		ch("글로벌 옥션", "글로벌 옥션", "globalauction", false, false),
		ch("카페24", "카페24", "cafe24", false, false),
		ch("화해", "화해", "hwahae", false, false),
		ch("무신사", "무신사", "musinsa", false, false),
		ch("알리익스프레스", "알리익스프레스", "aliexpress", false, false),
		ch("큐텐", "큐텐", "qoo10", false, false),
		ch("쉬인", "쉬인", "shein", false, false),
		ch("카카오 선물하기", "카카오 선물하기", "kakaotalkgift", false, false),
		ch("카카오 쇼핑하기", "카카오쇼핑", "kakaotalkshopping", true, false),
		ch("글로벌 네이버스마트스토어", "글로벌 네이버스마트스토어", "globalnaversmartstore", false, false),
		ch("카카오스타일", "카카오스타일", "kakaostyle", true, true),
		ch("사방넷", "사방넷", "sabangnet", false, false),
		ch("Hmall", "Hmall", "hmall", false, false),
		ch("네이버플러스스토어", "네이버플러스스토어", "naverplusstore", false, false),
		ch("퀸잇", "퀸잇", "queenit", true, true),
		ch("홈앤쇼핑", "홈앤쇼핑", "hnsmall", true, false),
		ch("로켓그로스", "로켓그로스", "rocketgrowth", false, false),
		ch("테무", "테무", "temu", false, false),
	}
	for i := range list {
		switch list[i].Name {
		case "지마켓", "옥션":
			list[i].DropdownGroup = "지마켓/옥션"
		case "GS Shop":
			list[i].Aliases = []string{"GS", "지에스샵"}
		case "롯데ON":
			list[i].Aliases = []string{"롯데온라인"}
		}
	}
	return list
}()
