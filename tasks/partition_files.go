package tasks

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"promo-pipelines/types"
)

// FileExt is the extension of every generated promotion file
const FileExt = ".xlsx"

const fileDateLayout = "060102"

// ErrInvalidFileName is returned when a name was not produced by FileName
var ErrInvalidFileName = errors.New("invalid promotion file name")

// FileKey is the information encoded in a promotion file name
type FileKey struct {
	StartDate time.Time
	EndDate   time.Time
	Kind      types.CampaignKind
	Channel   string
	Rows      int
}

// FileGroup is the set of rows sharing (start, end, channel)
type FileGroup struct {
	StartDate time.Time
	EndDate   time.Time
	Channel   string
	Rows      []types.PromotionRow
}

type groupKey struct {
	start, end string
	channel    string
}

// Partition groups rows by (start date, end date, channel). Groups are ordered
// by start, end, then channel; row order inside a group follows the input.
func Partition(rows []types.PromotionRow) []FileGroup {
	index := make(map[groupKey]int)
	var groups []FileGroup
	for _, r := range rows {
		k := groupKey{
			start:   r.StartDate.Format(time.DateOnly),
			end:     r.EndDate.Format(time.DateOnly),
			channel: r.Channel,
		}
		i, ok := index[k]
		if !ok {
			i = len(groups)
			index[k] = i
			groups = append(groups, FileGroup{StartDate: r.StartDate, EndDate: r.EndDate, Channel: r.Channel})
		}
		groups[i].Rows = append(groups[i].Rows, r)
	}

	sort.SliceStable(groups, func(i, j int) bool {
		a, b := groups[i], groups[j]
		if !a.StartDate.Equal(b.StartDate) {
			return a.StartDate.Before(b.StartDate)
		}
		if !a.EndDate.Equal(b.EndDate) {
			return a.EndDate.Before(b.EndDate)
		}
		return a.Channel < b.Channel
	})
	return groups
}

// FileName derives {yyMMdd}-{yyMMdd}_{label}_{channel}_{rows}.xlsx
func FileName(kind types.CampaignKind, g FileGroup) string {
	return fmt.Sprintf("%s-%s_%s_%s_%d%s",
		g.StartDate.Format(fileDateLayout),
		g.EndDate.Format(fileDateLayout),
		kind.Label(),
		g.Channel,
		len(g.Rows),
		FileExt,
	)
}

// ParseFileName recovers the key encoded by FileName. A directory prefix is ignored.
func ParseFileName(name string) (FileKey, error) {
	base := name
	if i := strings.LastIndexAny(base, `/\`); i >= 0 {
		base = base[i+1:]
	}
	base = strings.TrimSuffix(base, FileExt)

	parts := strings.Split(base, "_")
	if len(parts) != 4 {
		return FileKey{}, fmt.Errorf("%w: %q", ErrInvalidFileName, name)
	}

	dates := strings.Split(parts[0], "-")
	if len(dates) != 2 {
		return FileKey{}, fmt.Errorf("%w: date range %q", ErrInvalidFileName, parts[0])
	}
	start, err := time.Parse(fileDateLayout, dates[0])
	if err != nil {
		return FileKey{}, fmt.Errorf("%w: start date: %v", ErrInvalidFileName, err)
	}
	end, err := time.Parse(fileDateLayout, dates[1])
	if err != nil {
		return FileKey{}, fmt.Errorf("%w: end date: %v", ErrInvalidFileName, err)
	}

	kind, ok := types.KindFromLabel(parts[1])
	if !ok {
		return FileKey{}, fmt.Errorf("%w: label %q", ErrInvalidFileName, parts[1])
	}
	if parts[2] == "" {
		return FileKey{}, fmt.Errorf("%w: empty channel", ErrInvalidFileName)
	}
	rows, err := strconv.Atoi(parts[3])
	if err != nil || rows < 0 {
		return FileKey{}, fmt.Errorf("%w: row count %q", ErrInvalidFileName, parts[3])
	}

	return FileKey{StartDate: start, EndDate: end, Kind: kind, Channel: parts[2], Rows: rows}, nil
}
