package research

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
)

// DefaultEvalQuestions is the built-in test set for the eval harness.
var DefaultEvalQuestions = []string{
	"Give me a competitive analysis of Tesla vs. Rivian, focusing on 2025 market sentiment, battery technology, and production numbers.",
	"What is the future of autonomous driving? Compare Waymo, Tesla, and Cruise.",
	"Summarize the main arguments for and against generative AI in creative industries for 2025.",
	"Provide a market analysis of the top 3 cloud providers (AWS, Azure, GCP) for 2025, focusing on AI services.",
}

// EvalRecord is one line of eval output.
type EvalRecord struct {
	Question string   `json:"question"`
	Answer   string   `json:"answer"`
	Contexts []string `json:"contexts"`
	Error    string   `json:"error,omitempty"`
}

// Contexts returns the content of every search result the run's tools
// returned, in call order. Failed calls and non-JSON outputs are skipped.
func Contexts(res *RunResult) []string {
	contexts := []string{}
	if res == nil {
		return contexts
	}
	for _, call := range res.ToolCalls {
		if call.Error != "" {
			continue
		}
		var results []SearchResult
		if err := json.Unmarshal([]byte(call.Output), &results); err != nil {
			continue
		}
		for _, r := range results {
			contexts = append(contexts, r.Content)
		}
	}
	return contexts
}

// ReadQuestions reads one question per line, ignoring blank lines and lines
// starting with '#'.
func ReadQuestions(r io.Reader) ([]string, error) {
	var questions []string
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		questions = append(questions, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read questions: %w", err)
	}
	return questions, nil
}

// Evaluate runs the crew once per question and writes a JSON line per
// question to w. A failed run is recorded with its error and evaluation
// continues; only write errors and cancellation abort.
func (e *Engine) Evaluate(ctx context.Context, questions []string, w io.Writer) ([]EvalRecord, error) {
	enc := json.NewEncoder(w)
	records := make([]EvalRecord, 0, len(questions))

	for i, q := range questions {
		if err := ctx.Err(); err != nil {
			return records, err
		}
		e.Logger.Info("Evaluating question", "index", i+1, "total", len(questions), "question", q)

		res, err := e.Run(ctx, q)
		rec := EvalRecord{Question: q, Contexts: Contexts(res)}
		if err != nil {
			e.Logger.Error("Evaluation run failed", "question", q, "error", err)
			rec.Error = err.Error()
		} else {
			rec.Answer = res.Report
		}

		if err := enc.Encode(rec); err != nil {
			return records, fmt.Errorf("failed to write eval record: %w", err)
		}
		records = append(records, rec)
	}
	return records, nil
}
