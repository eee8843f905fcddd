/*
Copyright 2026 The Kubermatic Kubernetes Platform contributors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package github

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"strconv"

	"github.com/google/go-github/v75/github"
	"github.com/sirupsen/logrus"
)

var (
	ErrReleaseExists    = errors.New("release already exists")
	ErrIncompleteSearch = errors.New("search results are incomplete")
)

// the GraphQL client does not expose the response, only this message
var graphqlStatusRegex = regexp.MustCompile(`non-200 OK status code: (\d{3})`)

func statusCode(err error) int {
	var (
		errResp   *github.ErrorResponse
		rateErr   *github.RateLimitError
		abuseErr  *github.AbuseRateLimitError
		typedResp *http.Response
	)

	switch {
	case errors.As(err, &errResp):
		typedResp = errResp.Response
	case errors.As(err, &rateErr):
		typedResp = rateErr.Response
	case errors.As(err, &abuseErr):
		typedResp = abuseErr.Response
	}

	if typedResp != nil {
		return typedResp.StatusCode
	}

	if err != nil {
		if match := graphqlStatusRegex.FindStringSubmatch(err.Error()); match != nil {
			code, _ := strconv.Atoi(match[1])
			return code
		}
	}

	return 0
}

// IsServerError reports transient, platform-side failures.
func IsServerError(err error) bool {
	return statusCode(err) >= 500
}

func IsNotFound(err error) bool {
	return statusCode(err) == http.StatusNotFound
}

// IsForbidden reports permission and rate limit failures.
func IsForbidden(err error) bool {
	code := statusCode(err)
	return code == http.StatusForbidden || code == http.StatusTooManyRequests
}

// fail wraps err and, for 403-class responses, logs the current rate limit
// status. It never waits for the limit to reset.
func (c *Client) fail(ctx context.Context, err error, msg string) error {
	if IsForbidden(err) {
		c.logRateLimit(ctx)
	}

	return fmt.Errorf("%s: %w", msg, err)
}

func (c *Client) logRateLimit(ctx context.Context) {
	limits, _, err := c.rest.RateLimit.Get(ctx)
	if err != nil {
		c.log.WithError(err).Warn("Failed to check the rate limit.")
		return
	}

	core := limits.GetCore()
	if core == nil {
		return
	}

	c.log.WithFields(logrus.Fields{
		"limit":     core.Limit,
		"remaining": core.Remaining,
		"reset":     core.Reset.Time,
	}).Warn("Request was forbidden, current rate limit status.")
}

func isAlreadyExists(err error) bool {
	var errResp *github.ErrorResponse
	if !errors.As(err, &errResp) || errResp.Response == nil {
		return false
	}

	if errResp.Response.StatusCode != http.StatusUnprocessableEntity {
		return false
	}

	for _, e := range errResp.Errors {
		if e.Code == "already_exists" {
			return true
		}
	}

	return false
}
