package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/patrickmn/go-cache"

	"glance/internal/config"
	"glance/internal/logging"
)

const modelCacheKey = "models"

// Model is one installed model reported by the local daemon.
type Model struct {
	Name       string `json:"name"`
	Size       int64  `json:"size"`
	ModifiedAt string `json:"modified_at"`
}

// Status summarizes the local runtime: whether the binary is on this
// machine, whether the daemon answers, and its version if so.
type Status struct {
	Installed bool   `json:"installed"`
	Running   bool   `json:"running"`
	Version   string `json:"version,omitempty"`
}

// Runtime manages the local model daemon: binary detection, liveness and
// version probes, the installed-model list (cached), model pull/delete, and
// starting the daemon when it is not running.
type Runtime struct {
	baseURL      string
	binary       string
	startTimeout time.Duration
	httpClient   *http.Client
	models       *cache.Cache
}

// NewRuntime creates a manager for the configured local daemon.
func NewRuntime(cfg config.RuntimeConfig, modelTTL, startTimeout time.Duration) *Runtime {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = "http://127.0.0.1:11434"
	}
	binary := cfg.Binary
	if binary == "" {
		binary = "ollama"
	}
	if modelTTL <= 0 {
		modelTTL = 5 * time.Minute
	}
	if startTimeout <= 0 {
		startTimeout = 10 * time.Second
	}
	return &Runtime{
		baseURL:      strings.TrimRight(baseURL, "/"),
		binary:       binary,
		startTimeout: startTimeout,
		httpClient:   &http.Client{Timeout: 10 * time.Second},
		models:       cache.New(modelTTL, 2*modelTTL),
	}
}

// BinaryPath resolves the daemon binary on PATH or in common install
// locations. The second return is false when nothing is found.
func (r *Runtime) BinaryPath() (string, bool) {
	if path, err := exec.LookPath(r.binary); err == nil {
		return path, true
	}
	for _, path := range commonInstallPaths(r.binary) {
		if _, err := os.Stat(path); err == nil {
			return path, true
		}
	}
	return "", false
}

// Installed reports whether the daemon binary exists on this machine.
func (r *Runtime) Installed() bool {
	_, ok := r.BinaryPath()
	return ok
}

func commonInstallPaths(binary string) []string {
	home, _ := os.UserHomeDir()
	switch runtime.GOOS {
	case "windows":
		exe := binary + ".exe"
		return []string{
			filepath.Join(`C:\Program Files\Ollama`, exe),
			filepath.Join(`C:\Program Files (x86)\Ollama`, exe),
			filepath.Join(home, "AppData", "Local", "Programs", "Ollama", exe),
		}
	case "darwin":
		return []string{
			filepath.Join("/usr/local/bin", binary),
			filepath.Join("/opt/homebrew/bin", binary),
			filepath.Join(home, ".ollama", "bin", binary),
		}
	default:
		return []string{
			filepath.Join("/usr/local/bin", binary),
			filepath.Join("/usr/bin", binary),
			filepath.Join(home, ".local", "bin", binary),
		}
	}
}

// Running reports whether the daemon answers on its HTTP endpoint.
func (r *Runtime) Running(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, "GET", r.baseURL+"/api/tags", nil)
	if err != nil {
		return false
	}
	resp, err := r.httpClient.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

// Version returns the daemon version string.
func (r *Runtime) Version(ctx context.Context) (string, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", r.baseURL+"/api/version", nil)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	resp, err := r.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("cannot reach local runtime at %s: %w", r.baseURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		errBody, _ := readLimitedBody(resp.Body, maxErrorBodySize)
		return "", fmt.Errorf("version probe failed (status %d): %s", resp.StatusCode, strings.TrimSpace(string(errBody)))
	}

	var out struct {
		Version string `json:"version"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("failed to parse version: %w", err)
	}
	return out.Version, nil
}

// Status aggregates installation, liveness, and version in one probe.
func (r *Runtime) Status(ctx context.Context) Status {
	st := Status{Installed: r.Installed()}
	if st.Installed {
		st.Running = r.Running(ctx)
	}
	if st.Running {
		if v, err := r.Version(ctx); err == nil {
			st.Version = v
		}
	}
	return st
}

// ListModels returns the installed models. The list is cached; mutations
// through Pull and Delete invalidate it.
func (r *Runtime) ListModels(ctx context.Context) ([]Model, error) {
	if x, found := r.models.Get(modelCacheKey); found {
		return x.([]Model), nil
	}

	req, err := http.NewRequestWithContext(ctx, "GET", r.baseURL+"/api/tags", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	resp, err := r.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("cannot reach local runtime at %s: %w", r.baseURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		errBody, _ := readLimitedBody(resp.Body, maxErrorBodySize)
		return nil, fmt.Errorf("model list failed (status %d): %s", resp.StatusCode, strings.TrimSpace(string(errBody)))
	}

	var out struct {
		Models []Model `json:"models"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("failed to parse model list: %w", err)
	}

	r.models.Set(modelCacheKey, out.Models, cache.DefaultExpiration)
	logging.RuntimeDebug("[Runtime] listed %d installed models", len(out.Models))
	return out.Models, nil
}

// InvalidateModels drops the cached model list.
func (r *Runtime) InvalidateModels() {
	r.models.Delete(modelCacheKey)
}

// HasModel reports whether a model is installed. A bare name matches any
// tag, so "llama3.2" matches "llama3.2:latest".
func (r *Runtime) HasModel(ctx context.Context, name string) bool {
	models, err := r.ListModels(ctx)
	if err != nil {
		return false
	}
	for _, m := range models {
		if m.Name == name || strings.HasPrefix(m.Name, name+":") {
			return true
		}
	}
	return false
}

// ResolveModel picks the model to dispatch to: the preferred name when
// installed, else the first installed model. Returns false when the daemon
// is unreachable or has no models.
func (r *Runtime) ResolveModel(ctx context.Context, preferred string) (string, bool) {
	models, err := r.ListModels(ctx)
	if err != nil || len(models) == 0 {
		return "", false
	}
	if preferred != "" {
		for _, m := range models {
			if m.Name == preferred || strings.HasPrefix(m.Name, preferred+":") {
				return m.Name, true
			}
		}
	}
	return models[0].Name, true
}

// PullModel downloads a model through the daemon. Blocks until the download
// completes, so callers should pass a generous deadline.
func (r *Runtime) PullModel(ctx context.Context, name string) error {
	body, err := json.Marshal(map[string]any{"name": name, "stream": false})
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", r.baseURL+"/api/pull", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	// The pull endpoint streams the whole download; the manager's short probe
	// timeout would cut it off.
	client := &http.Client{}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("pull failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		errBody, _ := readLimitedBody(resp.Body, maxErrorBodySize)
		return fmt.Errorf("pull failed (status %d): %s", resp.StatusCode, strings.TrimSpace(string(errBody)))
	}

	var out struct {
		Status string `json:"status"`
		Error  string `json:"error,omitempty"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return fmt.Errorf("failed to parse pull response: %w", err)
	}
	if out.Error != "" {
		return fmt.Errorf("pull failed: %s", out.Error)
	}

	r.InvalidateModels()
	logging.Runtime("[Runtime] pulled model %s", name)
	return nil
}

// DeleteModel removes an installed model.
func (r *Runtime) DeleteModel(ctx context.Context, name string) error {
	body, err := json.Marshal(map[string]any{"name": name})
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "DELETE", r.baseURL+"/api/delete", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("delete failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return fmt.Errorf("model not installed: %s", name)
	}
	if resp.StatusCode != http.StatusOK {
		errBody, _ := readLimitedBody(resp.Body, maxErrorBodySize)
		return fmt.Errorf("delete failed (status %d): %s", resp.StatusCode, strings.TrimSpace(string(errBody)))
	}

	r.InvalidateModels()
	logging.Runtime("[Runtime] deleted model %s", name)
	return nil
}

// StartDaemon spawns the daemon and waits until it answers or the start
// timeout elapses. The daemon is started detached so it outlives this
// process; ctx bounds only the readiness wait.
func (r *Runtime) StartDaemon(ctx context.Context) error {
	if r.Running(ctx) {
		return nil
	}

	path, ok := r.BinaryPath()
	if !ok {
		return fmt.Errorf("local runtime binary %q not found", r.binary)
	}

	cmd := exec.Command(path, "serve")
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to start %s: %w", r.binary, err)
	}
	go func() {
		// Reap the child if the daemon exits while we are still running.
		_ = cmd.Wait()
	}()
	logging.Runtime("[Runtime] started %s serve (pid %d)", r.binary, cmd.Process.Pid)

	deadline := time.Now().Add(r.startTimeout)
	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if r.Running(ctx) {
				return nil
			}
			if time.Now().After(deadline) {
				return fmt.Errorf("daemon did not answer within %v", r.startTimeout)
			}
		}
	}
}
