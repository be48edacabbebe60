package notify

import (
	"fmt"
)

// Render turns an event into the chat message shown to the recipient.
func Render(event Event, payload map[string]any) string {
	get := func(key string) string {
		if v, ok := payload[key]; ok && v != nil {
			return fmt.Sprint(v)
		}
		return ""
	}

	switch event {
	case EventClipApproved:
		return fmt.Sprintf("Your clip %s was approved. Earned so far: %s.", get("video_url"), get("earned_amount"))
	case EventClipRejected:
		return fmt.Sprintf("Your clip %s was rejected: %s", get("video_url"), get("reason"))
	case EventClipVerified:
		return fmt.Sprintf("We found your verification code on %s. New views will now earn.", get("video_url"))
	case EventOfferExhausted:
		return fmt.Sprintf("Offer %q spent its budget of %s and was paused.", get("offer_name"), get("total_budget"))
	case EventWithdrawalRequested:
		return fmt.Sprintf("Withdrawal of %s requested. We will let you know once it is processed.", get("amount"))
	default:
		return string(event)
	}
}
