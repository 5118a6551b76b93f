// ClashOps - Deck Analysis Cache Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/clashops

/*
Package analysis produces report category text with a chat-completions model.

An Analyzer implements report.Analyzer. For each request it looks up the
category in its registry (model and instructions), pulls card notes out of
the KnowledgeBase, and sends one completion request through a ChatClient.

# Retrieval

Notes are keyed by namespace. Regular categories consult one namespace per
card (deck.CardNamespace). Optimize consults the tower troop namespaces and
one evolution namespace per card, and also receives the record's Ready
sibling categories as input.

# Upstream protection

HTTPClient talks to any OpenAI-compatible /v1/chat/completions endpoint and
runs every call through a circuit breaker named "analysis-llm". Client errors
(4xx other than 408 and 429) do not count against the breaker.
*/
package analysis
