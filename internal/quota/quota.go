// Package quota holds the process-shared search quota counter and the
// domain failure scores used to rank image search results. Both are backed
// by one SQLite database so concurrent shot workers and separate pipeline
// runs on the same host see a single daily budget.
package quota

import (
	"context"
	"strings"
)

// Counter reserves units from the shared daily search budget. Reservation
// happens before any network call so an exhausted budget never results in
// partial consumption.
type Counter interface {
	Reserve(ctx context.Context, n int) error
	Usage(ctx context.Context) (used, limit int, err error)
}

// DomainScores records download failures per source domain and scores
// domains for result ranking.
type DomainScores interface {
	RecordFailure(ctx context.Context, domain string) error
	Score(ctx context.Context, domain string) (int, error)
	Failures(ctx context.Context) (map[string]int, error)
}

// Domains known to watermark or paywall their images. Results from these
// rank last regardless of failure history.
var watermarkedDomains = map[string]struct{}{
	"gettyimages.com":   {},
	"shutterstock.com":  {},
	"alamy.com":         {},
	"istockphoto.com":   {},
	"dreamstime.com":    {},
	"123rf.com":         {},
	"fotolia.com":       {},
	"depositphotos.com": {},
}

// Domains with reliably clean, downloadable images. Results from these rank
// first.
var trustedDomains = map[string]struct{}{
	"wikimedia.org": {},
	"wikipedia.org": {},
	"pexels.com":    {},
	"unsplash.com":  {},
	"pixabay.com":   {},
	"flickr.com":    {},
	"archive.org":   {},
}

const (
	scoreWatermarked  = -100
	scoreTrusted      = 100
	scoreManyFailures = -50
	scoreSomeFailures = -20

	manyFailuresThreshold = 5
	someFailuresThreshold = 2
)

// NormalizeDomain strips a leading www. and lowercases, then reduces the
// host to its registrable two-label form so subdomains share one record
// (upload.wikimedia.org and commons.wikimedia.org both count as
// wikimedia.org).
func NormalizeDomain(host string) string {
	host = strings.ToLower(strings.TrimSpace(host))
	host = strings.TrimPrefix(host, "www.")
	if host == "" {
		return ""
	}
	labels := strings.Split(host, ".")
	if len(labels) > 2 {
		labels = labels[len(labels)-2:]
	}
	return strings.Join(labels, ".")
}

// IsWatermarked reports whether the domain is on the watermark blacklist.
func IsWatermarked(domain string) bool {
	_, ok := watermarkedDomains[NormalizeDomain(domain)]
	return ok
}

// IsTrusted reports whether the domain is on the trusted set.
func IsTrusted(domain string) bool {
	_, ok := trustedDomains[NormalizeDomain(domain)]
	return ok
}

// ScoreFor combines the static domain lists with the recorded failure count
// into a ranking adjustment. Higher is better.
func ScoreFor(domain string, failures int) int {
	score := 0
	if IsWatermarked(domain) {
		score += scoreWatermarked
	}
	if IsTrusted(domain) {
		score += scoreTrusted
	}
	switch {
	case failures > manyFailuresThreshold:
		score += scoreManyFailures
	case failures > someFailuresThreshold:
		score += scoreSomeFailures
	}
	return score
}
