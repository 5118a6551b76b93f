// ClashOps - Deck Analysis Cache Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/clashops

/*
Package metrics holds the Prometheus series shared across packages.

Metrics are exposed at /metrics in Prometheus text format:

	curl http://localhost:8080/metrics

# Available Metrics

HTTP:
  - clashops_api_requests_total{method,endpoint,status_code}
  - clashops_api_request_duration_seconds{method,endpoint}
  - clashops_api_active_requests
  - clashops_api_rate_limit_hits_total{endpoint}

Snapshot queries:
  - clashops_duckdb_query_duration_seconds{operation}
  - clashops_duckdb_query_errors_total{operation}

Usage refresh:
  - clashops_usage_refresh_duration_seconds
  - clashops_usage_snapshot_decks
  - clashops_usage_refresh_errors_total{error_type}
  - clashops_usage_refresh_last_success_timestamp

Circuit breakers (analysis client, Clash Royale client):
  - clashops_circuit_breaker_state{name} (0=closed, 1=half-open, 2=open)
  - clashops_circuit_breaker_requests_total{name,result}
  - clashops_circuit_breaker_consecutive_failures{name}
  - clashops_circuit_breaker_state_transitions_total{name,from_state,to_state}

Other packages register their own series:
  - internal/store: clashops_store_operations_total, clashops_store_operation_duration_seconds
  - internal/report: clashops_report_* (resolutions, compute and wait durations, in-flight)
  - internal/events: clashops_events_*

# Example Alerts

	groups:
	  - name: clashops
	    rules:
	      - alert: AnalysisBreakerOpen
	        expr: clashops_circuit_breaker_state{name="analysis-llm"} == 2
	        for: 5m
	      - alert: UsageRefreshStale
	        expr: time() - clashops_usage_refresh_last_success_timestamp > 30 * 86400
*/
package metrics
