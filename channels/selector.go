package channels

import (
	"regexp"
	"strings"

	"go.uber.org/zap"

	"promo-pipelines/types"
)

// Selector tokens accepted in the sheet's channel column besides dropdown labels.
// "*전 채널" and "ALL" select every channel; "*전 채널 (X제외)" and
// "ALL EXCEPT X" select every channel but X.
var (
	allTokens     = map[string]bool{normalize("*전 채널"): true, normalize("ALL"): true}
	exceptKorean  = regexp.MustCompile(`^\*\s*전\s*채널\s*\(\s*(.+?)\s*제외\s*\)$`)
	exceptEnglish = regexp.MustCompile(`(?i)^all\s+except\s+(.+)$`)
)

// ExpandSelector turns a channel selector into canonical channel names mapped
// to listing ids. For product campaigns available is the lookup result for the
// row's product; for brand campaigns pass nil and values are empty strings.
// Comma-separated tokens are expanded independently and merged, later tokens
// overwriting earlier ones. Unknown tokens contribute nothing.
func (d *Directory) ExpandSelector(selector string, available map[string]string, kind types.CampaignKind) map[string]string {
	result := make(map[string]string)
	for _, token := range strings.Split(selector, ",") {
		token = strings.TrimSpace(token)
		if token == "" {
			continue
		}
		for name, id := range d.expandToken(token, available, kind) {
			result[name] = id
		}
	}
	return result
}

func (d *Directory) expandToken(token string, available map[string]string, kind types.CampaignKind) map[string]string {
	if allTokens[normalize(token)] {
		return d.allChannels(available, kind)
	}
	if excluded, ok := exceptTarget(token); ok {
		all := d.allChannels(available, kind)
		name, found := d.ResolveAlias(excluded)
		if !found {
			zap.L().Warn("excluded channel not recognized", zap.String("selector", token), zap.String("channel", excluded))
		}
		delete(all, name)
		return all
	}

	names, ok := d.dropdown[kind][normalize(token)]
	if !ok {
		zap.L().Warn("unrecognized channel selector",
			zap.String("selector", token),
			zap.String("kind", string(kind)))
		return nil
	}

	out := make(map[string]string, len(names))
	for _, name := range names {
		if kind == types.KindProduct {
			if id, ok := available[name]; ok {
				out[name] = id
			}
			continue
		}
		if ch, ok := d.Channel(name); ok && ch.EnabledFor(kind) {
			out[name] = ""
		}
	}
	return out
}

func (d *Directory) allChannels(available map[string]string, kind types.CampaignKind) map[string]string {
	if kind == types.KindProduct && available != nil {
		out := make(map[string]string, len(available))
		for name, id := range available {
			out[name] = id
		}
		return out
	}
	enabled := d.EnabledChannels(kind)
	out := make(map[string]string, len(enabled))
	for _, name := range enabled {
		out[name] = ""
	}
	return out
}

func exceptTarget(token string) (string, bool) {
	if m := exceptKorean.FindStringSubmatch(token); m != nil {
		return m[1], true
	}
	if m := exceptEnglish.FindStringSubmatch(token); m != nil {
		return strings.TrimSpace(m[1]), true
	}
	return "", false
}
