package oracle

import (
	"fmt"
	"strings"

	"github.com/bytedance/sonic"
	"github.com/kaptinlin/jsonrepair"
	"github.com/samber/lo"
)

type prefilterResult struct {
	WorthAnalyzing  bool   `json:"worth_analyzing"`
	LikelyDirection string `json:"likely_direction"`
	Reason          string `json:"reason"`
}

type decisionResult struct {
	Signal          string   `json:"signal"`
	Confidence      string   `json:"confidence"`
	Reasoning       string   `json:"reasoning"`
	KeyFactors      []string `json:"key_factors"`
	Concerns        []string `json:"concerns"`
	EdgeExplanation string   `json:"edge_explanation"`
}

// parseResult extracts the outermost JSON object from a model reply, repairs
// it and decodes it into T.
func parseResult[T any](content string) (T, error) {
	start := strings.Index(content, "{")
	end := strings.LastIndex(content, "}")
	if start < 0 || end <= start {
		return lo.Empty[T](), fmt.Errorf("oracle: no JSON object in reply %q", truncate(content, 120))
	}
	repaired, err := jsonrepair.JSONRepair(content[start : end+1])
	if err != nil {
		return lo.Empty[T](), fmt.Errorf("oracle: repair JSON: %w", err)
	}
	var out T
	if err := sonic.UnmarshalString(repaired, &out); err != nil {
		return lo.Empty[T](), fmt.Errorf("oracle: decode reply: %w", err)
	}
	return out, nil
}

func truncate(s string, n int) string {
	if len(s) > n {
		return s[:n] + "..."
	}
	return s
}
