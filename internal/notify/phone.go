package notify

import "strings"

// NormalizePhone strips spaces and dashes and prefixes +91 when the number
// carries no country code.
func NormalizePhone(raw string) string {
	cleaned := strings.NewReplacer(" ", "", "-", "", "\t", "").Replace(strings.TrimSpace(raw))
	if cleaned == "" {
		return ""
	}
	if strings.HasPrefix(cleaned, "+") {
		return cleaned
	}
	return "+91" + cleaned
}

// WhatsAppAddress returns the Twilio WhatsApp address for a phone number.
func WhatsAppAddress(phone string) string {
	if strings.HasPrefix(phone, "whatsapp:") {
		return phone
	}
	return "whatsapp:" + phone
}
