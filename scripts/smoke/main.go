// Command smoke probes a running placement API and reports per-endpoint
// status and latency. Critical targets failing flips the exit code, which
// lets deploy pipelines gate on the funnel surface being reachable.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"
)

type target struct {
	Method   string `json:"method"`
	Path     string `json:"path"`
	Expect   int    `json:"expect"`
	Critical bool   `json:"critical"`
}

type config struct {
	Targets []target `json:"targets"`
}

type probe struct {
	Target    target
	Status    int
	ErrorCode string
	Duration  time.Duration
	Error     error
}

type envelope struct {
	Error *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func main() {
	var (
		base        string
		targetsPath string
		timeout     time.Duration
	)

	flag.StringVar(&base, "base", "http://localhost:8080", "Placement API base URL")
	flag.StringVar(&targetsPath, "targets", filepath.Join("scripts", "smoke", "targets.json"), "Path to JSON targets file")
	flag.DurationVar(&timeout, "timeout", 5*time.Second, "HTTP client timeout")
	flag.Parse()

	targets, err := loadTargets(targetsPath)
	if err != nil {
		log.Fatalf("failed to load targets: %v", err)
	}

	client := &http.Client{Timeout: timeout}
	var (
		probes   []probe
		breaking int
		soft     int
	)

	for _, t := range targets {
		p := probeTarget(client, base, t)
		if p.Error != nil || !statusOK(p) {
			if t.Critical {
				breaking++
			} else {
				soft++
			}
		}
		probes = append(probes, p)
	}

	printReport(probes)

	fmt.Printf("Critical failures: %d, Soft failures: %d\n", breaking, soft)
	if breaking > 0 {
		os.Exit(1)
	}
}

func loadTargets(path string) ([]target, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cfg config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	if len(cfg.Targets) == 0 {
		return nil, fmt.Errorf("no targets defined in %s", path)
	}
	return cfg.Targets, nil
}

func probeTarget(client *http.Client, base string, tgt target) probe {
	p := probe{Target: tgt}

	method := strings.ToUpper(strings.TrimSpace(tgt.Method))
	if method == "" {
		method = http.MethodGet
	}
	path := tgt.Path
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	url := strings.TrimRight(base, "/") + path

	req, err := http.NewRequest(method, url, nil)
	if err != nil {
		p.Error = err
		return p
	}

	start := time.Now()
	resp, err := client.Do(req)
	p.Duration = time.Since(start)
	if err != nil {
		p.Error = err
		return p
	}
	defer resp.Body.Close()

	p.Status = resp.StatusCode

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		p.Error = fmt.Errorf("read body: %w", err)
		return p
	}
	var env envelope
	if json.Unmarshal(body, &env) == nil && env.Error != nil {
		p.ErrorCode = env.Error.Code
	}
	return p
}

func statusOK(p probe) bool {
	expect := p.Target.Expect
	if expect == 0 {
		expect = http.StatusOK
	}
	return p.Status == expect
}

func printReport(probes []probe) {
	fmt.Println("METHOD  PATH                                         STATUS  LATENCY     NOTE")
	for _, p := range probes {
		note := ""
		switch {
		case p.Error != nil:
			note = p.Error.Error()
		case !statusOK(p):
			note = "unexpected status"
			if p.ErrorCode != "" {
				note += " (" + p.ErrorCode + ")"
			}
		}
		fmt.Printf("%-7s %-44s %-7d %-11s %s\n",
			strings.ToUpper(p.Target.Method), p.Target.Path, p.Status, p.Duration.Round(time.Millisecond), note)
	}
}
