package main

import (
	"fmt"
	"io"
	"sort"
	"time"
)

// LoadTestSummary holds the summary of load test results
type LoadTestSummary struct {
	TotalRequests       int
	SuccessfulRequests  int
	FailedRequests      int
	RateLimited         int
	TotalDuration       time.Duration
	AverageResponseTime time.Duration
	MinResponseTime     time.Duration
	MaxResponseTime     time.Duration
	RequestsPerSecond   float64
	ErrorRate           float64
	ResponseTime95th    time.Duration
	ResponseTime99th    time.Duration
	PerStep             map[string]int
}

func processResults(results <-chan LoadTestResult, totalDuration time.Duration) LoadTestSummary {
	summary := LoadTestSummary{TotalDuration: totalDuration, PerStep: make(map[string]int)}
	var responseTimes []time.Duration

	for result := range results {
		summary.TotalRequests++
		summary.PerStep[result.Step]++
		responseTimes = append(responseTimes, result.Duration)

		switch {
		case result.Success:
			summary.SuccessfulRequests++
		case result.StatusCode == 429:
			summary.RateLimited++
			summary.FailedRequests++
		default:
			summary.FailedRequests++
		}
	}

	if summary.TotalRequests == 0 {
		return summary
	}

	summary.ErrorRate = float64(summary.FailedRequests) / float64(summary.TotalRequests) * 100
	if totalDuration > 0 {
		summary.RequestsPerSecond = float64(summary.TotalRequests) / totalDuration.Seconds()
	}

	sort.Slice(responseTimes, func(i, j int) bool { return responseTimes[i] < responseTimes[j] })

	var totalResponseTime time.Duration
	for _, rt := range responseTimes {
		totalResponseTime += rt
	}
	summary.MinResponseTime = responseTimes[0]
	summary.MaxResponseTime = responseTimes[len(responseTimes)-1]
	summary.AverageResponseTime = totalResponseTime / time.Duration(len(responseTimes))
	summary.ResponseTime95th = calculatePercentile(responseTimes, 95)
	summary.ResponseTime99th = calculatePercentile(responseTimes, 99)

	return summary
}

// calculatePercentile expects sorted input
func calculatePercentile(sorted []time.Duration, percentile int) time.Duration {
	if len(sorted) == 0 {
		return 0
	}
	index := int(float64(len(sorted)) * float64(percentile) / 100.0)
	if index >= len(sorted) {
		index = len(sorted) - 1
	}
	return sorted[index]
}

func printSummary(out io.Writer, summary LoadTestSummary) {
	if summary.TotalRequests == 0 {
		fmt.Fprintln(out, "No requests were sent")
		return
	}

	fmt.Fprintln(out, "=== Load Test Results ===")
	fmt.Fprintf(out, "Total Requests: %d\n", summary.TotalRequests)
	fmt.Fprintf(out, "Successful Requests: %d (%.2f%%)\n", summary.SuccessfulRequests,
		float64(summary.SuccessfulRequests)/float64(summary.TotalRequests)*100)
	fmt.Fprintf(out, "Failed Requests: %d (%.2f%%), rate limited: %d\n", summary.FailedRequests, summary.ErrorRate, summary.RateLimited)
	fmt.Fprintf(out, "Total Duration: %v\n", summary.TotalDuration)
	fmt.Fprintf(out, "Requests per Second: %.2f\n", summary.RequestsPerSecond)
	fmt.Fprintf(out, "Average Response Time: %v\n", summary.AverageResponseTime)
	fmt.Fprintf(out, "Min Response Time: %v\n", summary.MinResponseTime)
	fmt.Fprintf(out, "Max Response Time: %v\n", summary.MaxResponseTime)
	fmt.Fprintf(out, "95th Percentile Response Time: %v\n", summary.ResponseTime95th)
	fmt.Fprintf(out, "99th Percentile Response Time: %v\n", summary.ResponseTime99th)

	steps := make([]string, 0, len(summary.PerStep))
	for name := range summary.PerStep {
		steps = append(steps, name)
	}
	sort.Strings(steps)
	for _, name := range steps {
		fmt.Fprintf(out, "  %s: %d\n", name, summary.PerStep[name])
	}

	fmt.Fprintln(out, "\n=== Performance Assessment ===")
	if summary.ErrorRate > 5.0 {
		fmt.Fprintf(out, "High error rate: %.2f%% (target: < 5%%)\n", summary.ErrorRate)
	} else {
		fmt.Fprintf(out, "Error rate: %.2f%% (good)\n", summary.ErrorRate)
	}

	if summary.AverageResponseTime > 2*time.Second {
		fmt.Fprintf(out, "High average response time: %v (target: < 2s)\n", summary.AverageResponseTime)
	} else {
		fmt.Fprintf(out, "Average response time: %v (good)\n", summary.AverageResponseTime)
	}
}
