// Package agents provides HTTP clients for the four external agent
// services: segmentation, content retrieval, message generation, and
// compliance validation.
//
// Every call is bounded by a per-call timeout and every failure is
// normalized to a *domain.AgentError so the executor can make retry
// decisions without seeing raw transport errors. The compliance client
// additionally degrades to a local keyword heuristic when the remote
// safety service is unavailable.
package agents
