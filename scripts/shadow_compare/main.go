// Command shadow_compare replays read-only probes against the new agenda
// API and the legacy scheduler it replaces, and reports response drift.
// Run it during cutover to catch contract regressions before switching
// traffic over.
package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"reflect"
	"strings"
	"time"
)

type probe struct {
	Method   string `json:"method"`
	Path     string `json:"path"`
	Critical bool   `json:"critical"`
}

type probeFile struct {
	Probes []probe `json:"probes"`
}

type result struct {
	Probe          probe
	LegacyStatus   int
	AgendaStatus   int
	StatusMatch    bool
	BodyMatch      bool
	Error          error
	DurationAgenda time.Duration
	DurationLegacy time.Duration
}

// Fields that legitimately differ between the two systems.
var volatileFields = map[string]struct{}{
	"created_at": {},
	"updated_at": {},
	"decided_at": {},
	"synced_at":  {},
	"latency":    {},
	"meta":       {},
}

func defaultProbes() []probe {
	return []probe{
		{Method: http.MethodGet, Path: "/health", Critical: true},
		{Method: http.MethodGet, Path: "/ready", Critical: false},
		{Method: http.MethodGet, Path: "/api/v1/requests?status=APPROVED&limit=20", Critical: true},
		{Method: http.MethodGet, Path: "/api/v1/calendar-events?sync_status=SYNCED&limit=20", Critical: true},
		{Method: http.MethodGet, Path: "/api/v1/collections?limit=20", Critical: false},
	}
}

func main() {
	var (
		agendaBase string
		legacyBase string
		probesPath string
		token      string
		timeout    time.Duration
	)

	flag.StringVar(&agendaBase, "api-base", "http://localhost:8080", "Agenda API base URL")
	flag.StringVar(&legacyBase, "legacy-base", "http://localhost:3000", "Legacy scheduler base URL")
	flag.StringVar(&probesPath, "probes", "", "Path to JSON probes file (optional)")
	flag.StringVar(&token, "token", os.Getenv("SHADOW_COMPARE_TOKEN"), "Bearer token sent to both systems")
	flag.DurationVar(&timeout, "timeout", 5*time.Second, "HTTP client timeout")
	flag.Parse()

	probes := defaultProbes()
	if probesPath != "" {
		loaded, err := loadProbes(probesPath)
		if err != nil {
			log.Fatalf("failed to load probes: %v", err)
		}
		probes = loaded
	}

	client := &http.Client{Timeout: timeout}
	var (
		results      []result
		breaking     int
		optionalDiff int
	)

	for _, p := range probes {
		res := compare(client, agendaBase, legacyBase, token, p)
		if res.Error != nil || !res.StatusMatch || !res.BodyMatch {
			if p.Critical {
				breaking++
			} else {
				optionalDiff++
			}
		}
		results = append(results, res)
	}

	printReport(results)

	fmt.Printf("Breaking diffs: %d, Optional diffs: %d\n", breaking, optionalDiff)
	if breaking > 0 {
		os.Exit(1)
	}
}

func loadProbes(path string) ([]probe, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cfg probeFile
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	if len(cfg.Probes) == 0 {
		return nil, fmt.Errorf("no probes defined in %s", path)
	}
	return cfg.Probes, nil
}

func compare(client *http.Client, agendaBase, legacyBase, token string, p probe) result {
	res := result{Probe: p}
	agendaResp, agendaDur, agendaErr := perform(client, agendaBase, token, p)
	legacyResp, legacyDur, legacyErr := perform(client, legacyBase, token, p)
	res.DurationAgenda = agendaDur
	res.DurationLegacy = legacyDur

	if agendaErr != nil {
		res.Error = fmt.Errorf("agenda request failed: %w", agendaErr)
		return res
	}
	if legacyErr != nil {
		res.Error = fmt.Errorf("legacy request failed: %w", legacyErr)
		return res
	}

	res.AgendaStatus = agendaResp.StatusCode
	res.LegacyStatus = legacyResp.StatusCode
	res.StatusMatch = res.AgendaStatus == res.LegacyStatus

	defer agendaResp.Body.Close()
	defer legacyResp.Body.Close()

	agendaBody, err := io.ReadAll(agendaResp.Body)
	if err != nil {
		res.Error = fmt.Errorf("read agenda body: %w", err)
		return res
	}
	legacyBody, err := io.ReadAll(legacyResp.Body)
	if err != nil {
		res.Error = fmt.Errorf("read legacy body: %w", err)
		return res
	}

	res.BodyMatch = bodiesEqual(agendaBody, legacyBody)

	return res
}

func perform(client *http.Client, base, token string, p probe) (*http.Response, time.Duration, error) {
	if client == nil {
		return nil, 0, errors.New("nil client")
	}
	method := strings.ToUpper(strings.TrimSpace(p.Method))
	if method == "" {
		method = http.MethodGet
	}
	path := p.Path
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	url := strings.TrimRight(base, "/") + path

	req, err := http.NewRequest(method, url, nil)
	if err != nil {
		return nil, 0, err
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	start := time.Now()
	resp, err := client.Do(req)
	if err != nil {
		return nil, 0, err
	}
	return resp, time.Since(start), nil
}

func bodiesEqual(a, b []byte) bool {
	if bytes.Equal(bytes.TrimSpace(a), bytes.TrimSpace(b)) {
		return true
	}

	var aj, bj interface{}
	if err := json.Unmarshal(a, &aj); err != nil {
		return false
	}
	if err := json.Unmarshal(b, &bj); err != nil {
		return false
	}
	normalize(&aj)
	normalize(&bj)
	return reflect.DeepEqual(aj, bj)
}

// normalize strips volatile fields and flattens float64 integers so the
// comparison tracks contract shape, not clock values.
func normalize(v *interface{}) {
	switch val := (*v).(type) {
	case map[string]interface{}:
		for k := range val {
			if _, skip := volatileFields[k]; skip {
				delete(val, k)
			}
		}
		for k, v2 := range val {
			normalize(&v2)
			val[k] = v2
		}
	case []interface{}:
		for i, v2 := range val {
			normalize(&v2)
			val[i] = v2
		}
	case float64:
		if val == float64(int64(val)) {
			*v = int64(val)
		}
	}
}

func printReport(results []result) {
	fmt.Println("Shadow Compare Report")
	fmt.Println("======================")
	for _, res := range results {
		status := "OK"
		if res.Error != nil {
			status = "ERROR"
		} else if !res.StatusMatch || !res.BodyMatch {
			status = "DIFF"
		}
		fmt.Printf("[%s] %s %s\n", status, res.Probe.Method, res.Probe.Path)
		fmt.Printf("  Agenda Status: %d (%s)\n", res.AgendaStatus, res.DurationAgenda)
		fmt.Printf("  Legacy Status: %d (%s)\n", res.LegacyStatus, res.DurationLegacy)
		if res.Error != nil {
			fmt.Printf("  Error: %v\n", res.Error)
		} else {
			fmt.Printf("  Status match: %t | Body match: %t | Critical: %t\n", res.StatusMatch, res.BodyMatch, res.Probe.Critical)
		}
	}
}
