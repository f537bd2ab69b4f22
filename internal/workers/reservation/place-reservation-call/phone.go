package placereservationcall

import (
	"fmt"
	"strings"

	"energy-ai-agent/internal/models"
)

var bookingHostKeywords = []string{
	"inline.app",
	"inline.com",
	"opentable",
	"reserve.google.com",
	"eztable",
	"tablecheck",
	"funnow",
	"accupass",
	"booknow",
}

// NormalizePhone converts a local or international number to E.164 for countryCode (e.g.
// "886"). An empty result means the number is unusable.
func NormalizePhone(raw, countryCode string) string {
	p := strings.TrimSpace(raw)
	if p == "" {
		return ""
	}

	if strings.HasPrefix(p, "+") {
		digits := onlyDigits(p[1:])
		if digits == "" {
			return ""
		}
		return "+" + digits
	}

	digits := onlyDigits(p)
	switch {
	case digits == "":
		return ""
	case countryCode != "" && strings.HasPrefix(digits, countryCode):
		return "+" + digits
	case strings.HasPrefix(digits, "0"):
		return "+" + countryCode + digits[1:]
	default:
		return "+" + digits
	}
}

func onlyDigits(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// CallScript is what the restaurant hears.
func CallScript(plan models.ReservationPlan) string {
	var b strings.Builder
	fmt.Fprintf(&b, "您好，想訂位。時間 %s，%d 位。", plan.Datetime, plan.PartySize)
	if notes := strings.TrimSpace(plan.Notes); notes != "" {
		fmt.Fprintf(&b, " 備註：%s。", notes)
	}
	b.WriteString("若可訂位，麻煩回覆確認，謝謝。")
	return b.String()
}

// ReservationLink returns the venue website (or map link) when it points at a known online
// booking host.
func ReservationLink(v models.Venue) string {
	u := strings.TrimSpace(v.Website)
	if u == "" {
		u = strings.TrimSpace(v.MapsURL)
	}
	low := strings.ToLower(u)
	for _, k := range bookingHostKeywords {
		if strings.Contains(low, k) {
			return u
		}
	}
	return ""
}

// fallbackLink is the website, else the map link.
func fallbackLink(v models.Venue) string {
	if v.Website != "" {
		return v.Website
	}
	return v.MapsURL
}
