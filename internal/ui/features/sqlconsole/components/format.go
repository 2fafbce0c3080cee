package components

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/leapstack-labs/workbench/internal/console"
	"github.com/leapstack-labs/workbench/pkg/core"
)

// TabAction returns the datastar action that calls op on a tab's API.
func TabAction(method, tabID, op string) string {
	return fmt.Sprintf("@%s('/api/tabs/%s/%s')", method, tabID, op)
}

// CSS class helpers

func statusClass(status string) string {
	switch status {
	case "success":
		return "status--success"
	case "running":
		return "status--running"
	case "error":
		return "status--error"
	case "canceled":
		return "status--canceled"
	default:
		return ""
	}
}

func truncateID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func formatDurationMS(ms int64) string {
	if ms < 1000 {
		return strconv.FormatInt(ms, 10) + "ms"
	}
	secs := float64(ms) / 1000
	if secs < 60 {
		return strconv.FormatFloat(secs, 'f', 1, 64) + "s"
	}
	mins := int(secs / 60)
	return fmt.Sprintf("%dm%ds", mins, int(secs)%60)
}

func formatTime(t *time.Time) string {
	if t == nil || t.IsZero() {
		return ""
	}
	return t.Local().Format("15:04:05")
}

func formatCount(n *int64) string {
	if n == nil {
		return ""
	}
	return strconv.FormatInt(*n, 10)
}

// formatValue renders one cell.
func formatValue(v any) string {
	switch x := v.(type) {
	case nil:
		return "NULL"
	case []byte:
		return string(x)
	case string:
		return x
	case json.Number:
		return x.String()
	case map[string]any, []any:
		b, err := json.Marshal(x)
		if err != nil {
			return fmt.Sprintf("%v", x)
		}
		return string(b)
	default:
		return fmt.Sprintf("%v", x)
	}
}

// itemRows returns the row count column of an overview item.
func itemRows(it core.OverviewItem) string {
	if it.RowsReturned != nil {
		return formatCount(it.RowsReturned) + " rows"
	}
	if it.RowsAffected != nil {
		return formatCount(it.RowsAffected) + " affected"
	}
	return ""
}

type debugEntry struct {
	label string
	value string
}

func debugEntries(d *console.DebugInfo) []debugEntry {
	return []debugEntry{
		{"cache key", d.CacheKey},
		{"buffered", strconv.Itoa(d.Buffered)},
		{"visible", strconv.Itoa(d.Visible)},
		{"read started", d.ReadStartedAt.Format("15:04:05.000")},
		{"first chunk after", d.TimeToFirstChunk.String()},
		{"last flush", d.LastFlushAt.Format("15:04:05.000")},
		{"flushes", strconv.Itoa(d.Flushes)},
		{"cache entries", strconv.Itoa(d.CacheEntries)},
		{"cache keys", strings.Join(d.CacheKeys, ", ")},
		{"data version", fmt.Sprintf("%d (engine %d)", d.DataVersion, d.EngineVersion)},
		{"user picked", strconv.FormatBool(d.UserPicked)},
	}
}
