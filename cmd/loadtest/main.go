package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

// LoadTestConfig holds configuration for load testing
type LoadTestConfig struct {
	BaseURL         string
	Scenario        string
	ConcurrentUsers int
	RequestsPerUser int
	Timeout         time.Duration
	TestDuration    time.Duration
	RampUpDuration  time.Duration
	ThinkTime       time.Duration
}

// LoadTestResult holds the result of a single request
type LoadTestResult struct {
	UserID     int
	RequestID  int
	Step       string
	StatusCode int
	Duration   time.Duration
	Success    bool
	Error      error
	Timestamp  time.Time
}

func main() {
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	var config LoadTestConfig

	command := &cobra.Command{
		Use:   "loadtest",
		Short: "Drive concurrent traffic at the travel assistant API",
		RunE: func(cmd *cobra.Command, args []string) error {
			steps, err := scenarioSteps(config.Scenario)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Starting load test against %s\n", config.BaseURL)
			fmt.Fprintf(out, "Scenario: %s, users: %d, requests per user: %d\n\n",
				config.Scenario, config.ConcurrentUsers, config.RequestsPerUser)

			summary := runLoadTest(cmd.Context(), config, steps)
			printSummary(out, summary)
			return nil
		},
	}

	flags := command.Flags()
	flags.StringVar(&config.BaseURL, "url", "http://localhost:8081", "Base URL of the API")
	flags.StringVar(&config.Scenario, "scenario", "mixed", "Traffic mix: rates, listings, chat or mixed")
	flags.IntVar(&config.ConcurrentUsers, "users", 10, "Number of concurrent users")
	flags.IntVar(&config.RequestsPerUser, "requests", 100, "Number of requests per user")
	flags.DurationVar(&config.Timeout, "timeout", 30*time.Second, "Request timeout")
	flags.DurationVar(&config.TestDuration, "duration", 0, "Test duration (0 = run until all requests complete)")
	flags.DurationVar(&config.RampUpDuration, "rampup", 5*time.Second, "Ramp-up duration")
	flags.DurationVar(&config.ThinkTime, "think", 100*time.Millisecond, "Think time between requests")

	return command
}

// step is one request template in a scenario
type step struct {
	name   string
	method string
	path   string
	body   func(userID int) string
}

func scenarioSteps(scenario string) ([]step, error) {
	rates := []step{
		{name: "rate", method: http.MethodGet, path: "/api/v1/rates/USD/KRW"},
		{name: "convert", method: http.MethodPost, path: "/api/v1/currency/convert",
			body: func(int) string { return `{"from":"JPY","to":"USD","amount":"12500"}` }},
	}
	listings := []step{
		{name: "accommodations", method: http.MethodGet, path: "/api/v1/accommodations?location=Seoul"},
		{name: "foods", method: http.MethodGet, path: "/api/v1/foods?location=Busan&cuisine=seafood"},
		{name: "places", method: http.MethodGet, path: "/api/v1/places?location=Seoul&category=museum"},
	}
	chat := []step{
		{name: "chat", method: http.MethodPost, path: "/api/v1/chat",
			body: func(userID int) string {
				return fmt.Sprintf(`{"message":"Plan a day in Seoul","sessionId":"loadtest-%d"}`, userID)
			}},
	}

	switch scenario {
	case "rates":
		return rates, nil
	case "listings":
		return listings, nil
	case "chat":
		return chat, nil
	case "mixed":
		mixed := append(append([]step{}, rates...), listings...)
		return append(mixed, chat...), nil
	default:
		return nil, fmt.Errorf("unknown scenario %q", scenario)
	}
}

func runLoadTest(parent context.Context, config LoadTestConfig, steps []step) LoadTestSummary {
	results := make(chan LoadTestResult, config.ConcurrentUsers*config.RequestsPerUser)
	client := &http.Client{Timeout: config.Timeout}

	ctx := parent
	if config.TestDuration > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(parent, config.TestDuration)
		defer cancel()
	}

	startTime := time.Now()

	var rampUpDelay time.Duration
	if config.ConcurrentUsers > 0 {
		rampUpDelay = config.RampUpDuration / time.Duration(config.ConcurrentUsers)
	}

	var group errgroup.Group
	for userID := 0; userID < config.ConcurrentUsers; userID++ {
		group.Go(func() error {
			if !pause(ctx, time.Duration(userID)*rampUpDelay) {
				return nil
			}

			for requestID := 0; requestID < config.RequestsPerUser; requestID++ {
				if ctx.Err() != nil {
					return nil
				}

				current := steps[(userID+requestID)%len(steps)]
				results <- makeRequest(ctx, client, config.BaseURL, current, userID, requestID)

				if !pause(ctx, config.ThinkTime) {
					return nil
				}
			}
			return nil
		})
	}

	_ = group.Wait()
	close(results)

	return processResults(results, time.Since(startTime))
}

// pause sleeps for d and reports false when ctx ends first
func pause(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return true
	case <-ctx.Done():
		return false
	}
}

func makeRequest(ctx context.Context, client *http.Client, baseURL string, current step, userID, requestID int) LoadTestResult {
	result := LoadTestResult{UserID: userID, RequestID: requestID, Step: current.name, Timestamp: time.Now()}

	var body io.Reader
	if current.body != nil {
		body = strings.NewReader(current.body(userID))
	}

	request, err := http.NewRequestWithContext(ctx, current.method, strings.TrimRight(baseURL, "/")+current.path, body)
	if err != nil {
		result.Error = err
		return result
	}
	if body != nil {
		request.Header.Set("Content-Type", "application/json")
	}

	resp, err := client.Do(request)
	result.Duration = time.Since(result.Timestamp)
	if err != nil {
		result.Error = err
		return result
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	result.StatusCode = resp.StatusCode
	result.Success = resp.StatusCode >= 200 && resp.StatusCode < 300
	return result
}
