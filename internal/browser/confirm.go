package browser

import (
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// ConfirmationResult holds the outcome of following a confirmation link
type ConfirmationResult struct {
	Success      bool
	URL          string
	FinalURL     string
	StatusCode   int
	ResponseBody string
	ErrorMessage string
	RedirectPath []string
}

// ConfirmationHandler follows the confirmation links some list operators
// send by email after the initial unsubscribe request. It works over plain
// HTTP; pages that need a click go through Browser instead.
type ConfirmationHandler struct {
	client       *http.Client
	knownDomains map[string]bool
}

// NewConfirmationHandler creates a handler restricted to the given sender
// domains
func NewConfirmationHandler(senderDomains []string) *ConfirmationHandler {
	domains := make(map[string]bool)
	for _, d := range senderDomains {
		d = strings.ToLower(d)
		domains[d] = true
		// Common mail-infrastructure subdomains
		for _, prefix := range []string{"www.", "mail.", "email.", "links.", "click."} {
			if !strings.HasPrefix(d, prefix) {
				domains[prefix+d] = true
			}
		}
	}

	return &ConfirmationHandler{
		client: &http.Client{
			Timeout: 30 * time.Second,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= 10 {
					return fmt.Errorf("too many redirects")
				}
				return nil
			},
		},
		knownDomains: domains,
	}
}

// ValidateDomain checks if the URL belongs to a known sender domain
func (h *ConfirmationHandler) ValidateDomain(confirmURL string) (bool, string, error) {
	parsed, err := url.Parse(confirmURL)
	if err != nil {
		return false, "", fmt.Errorf("invalid URL: %w", err)
	}

	host := strings.ToLower(parsed.Host)
	if idx := strings.Index(host, ":"); idx != -1 {
		host = host[:idx]
	}

	if h.knownDomains[host] {
		return true, host, nil
	}
	for domain := range h.knownDomains {
		if strings.HasSuffix(host, "."+domain) {
			return true, domain, nil
		}
	}

	return false, host, nil
}

// FollowConfirmationLink sends a GET request to the confirmation URL
func (h *ConfirmationHandler) FollowConfirmationLink(confirmURL string, validateDomain bool) (*ConfirmationResult, error) {
	result := &ConfirmationResult{
		URL:          confirmURL,
		RedirectPath: []string{confirmURL},
	}

	if validateDomain {
		valid, domain, err := h.ValidateDomain(confirmURL)
		if err != nil {
			result.ErrorMessage = err.Error()
			return result, err
		}
		if !valid {
			result.ErrorMessage = fmt.Sprintf("domain %s is not a known sender domain", domain)
			return result, fmt.Errorf("%s", result.ErrorMessage)
		}
	}

	req, err := http.NewRequest("GET", confirmURL, nil)
	if err != nil {
		result.ErrorMessage = fmt.Sprintf("failed to create request: %v", err)
		return result, err
	}

	// Some list software rejects non-browser user agents
	req.Header.Set("User-Agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36")
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.5")

	var redirects []string
	h.client.CheckRedirect = func(req *http.Request, via []*http.Request) error {
		if len(via) >= 10 {
			return fmt.Errorf("too many redirects")
		}
		redirects = append(redirects, req.URL.String())
		return nil
	}

	resp, err := h.client.Do(req)
	if err != nil {
		result.ErrorMessage = fmt.Sprintf("request failed: %v", err)
		return result, err
	}
	defer resp.Body.Close()

	result.StatusCode = resp.StatusCode
	result.FinalURL = resp.Request.URL.String()
	result.RedirectPath = append(result.RedirectPath, redirects...)

	body, err := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
	if err != nil {
		result.ErrorMessage = fmt.Sprintf("failed to read response: %v", err)
		return result, err
	}
	result.ResponseBody = string(body)

	result.Success = ResponseIndicatesSuccess(resp.StatusCode, result.ResponseBody)
	if !result.Success && result.ErrorMessage == "" {
		result.ErrorMessage = fmt.Sprintf("confirmation may have failed (status %d)", resp.StatusCode)
	}

	return result, nil
}

var successPatterns = []string{
	"unsubscribed",
	"successfully",
	"you have been removed",
	"has been removed",
	"removed from our list",
	"removed from this list",
	"opted out",
	"opt-out complete",
	"preferences updated",
	"subscription cancelled",
	"subscription canceled",
	"no longer receive",
	"request received",
	"thank you",
}

var failurePatterns = []string{
	"link expired",
	"link invalid",
	"error occurred",
	"something went wrong",
	"could not",
	"unable to",
	"failed",
}

// ResponseIndicatesSuccess checks status and body text for unsubscribe
// success wording
func ResponseIndicatesSuccess(statusCode int, body string) bool {
	if statusCode < 200 || statusCode >= 400 {
		return false
	}

	bodyLower := strings.ToLower(body)
	for _, pattern := range successPatterns {
		if strings.Contains(bodyLower, pattern) {
			return true
		}
	}
	for _, pattern := range failurePatterns {
		if strings.Contains(bodyLower, pattern) {
			return false
		}
	}

	// Status 200 with no failure wording is treated as success
	return statusCode == 200
}

// StatusDescription extracts a human-readable status from the response
func (h *ConfirmationHandler) StatusDescription(result *ConfirmationResult) string {
	if result.Success {
		return "Confirmation successful"
	}

	bodyLower := strings.ToLower(result.ResponseBody)

	if strings.Contains(bodyLower, "expired") {
		return "Link expired"
	}
	if strings.Contains(bodyLower, "already") {
		return "Already processed"
	}
	if strings.Contains(bodyLower, "invalid") {
		return "Invalid link"
	}
	if result.StatusCode == 404 {
		return "Link not found (404)"
	}
	if result.StatusCode >= 500 {
		return "Server error"
	}

	return "Unknown status"
}
