package devbackend

import (
	"context"
	"fmt"
	"time"

	"github.com/leapstack-labs/docdesk/pkg/core"
)

// seedEpoch is the first date handed out by Seed.
var seedEpoch = time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC)

// SampleRecord builds the i-th demo record of res from its field kinds.
// The output is deterministic: record i of a date field falls i days after
// 2024-01-01.
func SampleRecord(res *core.Resource, i int) map[string]any {
	values := make(map[string]any, len(res.Fields))
	for _, f := range res.Fields {
		switch f.Kind {
		case core.FieldNumber:
			values[f.Name] = float64((i+1)*125) / 10
		case core.FieldDate:
			values[f.Name] = seedEpoch.AddDate(0, 0, i).Format("2006-01-02")
		case core.FieldCheckbox, core.FieldToggle:
			values[f.Name] = i%2 == 0
		case core.FieldSelect:
			if len(f.Options) > 0 {
				values[f.Name] = f.Options[i%len(f.Options)].Value
			}
		case core.FieldEmail:
			values[f.Name] = fmt.Sprintf("user%d@example.com", i+1)
		case core.FieldTel:
			values[f.Name] = fmt.Sprintf("+1 555 %04d", i+1)
		case core.FieldFile, core.FieldPasswordToggle:
			// no demo documents or passwords
		default:
			values[f.Name] = fmt.Sprintf("%s %03d", f.Label, i+1)
		}
	}
	return values
}

// Seed inserts n demo records for every non-singleton resource.
func Seed(ctx context.Context, store *Store, resources []*core.Resource, n int) (int, error) {
	total := 0
	for _, res := range resources {
		if res.Singleton {
			continue
		}
		cols := map[string][]any{}
		for i := range n {
			for k, v := range SampleRecord(res, i) {
				if cols[k] == nil {
					cols[k] = make([]any, n)
				}
				cols[k][i] = v
			}
		}
		created, err := store.BulkCreate(ctx, res, cols)
		if err != nil {
			return total, fmt.Errorf("failed to seed %s: %w", res.Name, err)
		}
		store.logger.Info("seeded resource", "resource", res.Name, "count", created)
		total += created
	}
	return total, nil
}
