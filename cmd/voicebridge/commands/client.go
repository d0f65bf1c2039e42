package commands

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/solutionstwo/voicebridge/pkg/cli"
)

// postAPI sends a JSON request to the running server and decodes the
// JSON response.
func postAPI(path string, body any) (map[string]any, error) {
	data, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}

	url := strings.TrimSuffix(flagServer, "/") + path
	resp, err := http.Post(url, "application/json", bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("call %s: %w", url, err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	var out map[string]any
	if len(payload) > 0 {
		if err := json.Unmarshal(payload, &out); err != nil {
			return nil, fmt.Errorf("decode response: %w", err)
		}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		if msg, ok := out["error"].(string); ok {
			return nil, fmt.Errorf("server: %s", msg)
		}
		return nil, fmt.Errorf("server: status %d", resp.StatusCode)
	}
	return out, nil
}

// printResult renders a server response with the configured format.
func printResult(result any) error {
	return cli.Output(result, cli.OutputOptions{Format: cli.OutputFormat(flagOutput)})
}
