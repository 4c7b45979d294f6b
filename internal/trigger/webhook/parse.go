package webhook

import (
	"encoding/json"

	"github.com/orbitflow/agentcore/internal/trigger"
)

// parse dispatches on webhook_type (spec §4.5 step 5). A parse failure is
// non-fatal: the event data carries a parse_error key and the raw body, and
// the pipeline continues — a malformed payload must never block delivery to
// the trigger, since condition evaluation on missing fields already degrades
// gracefully (trigger.SimpleEvaluator).
func parse(webhookType *trigger.WebhookType, req Request) map[string]any {
	data := map[string]any{
		"method":  req.Method,
		"headers": flattenHeaders(req.Headers),
	}

	var body map[string]any
	if len(req.Body) > 0 {
		if err := json.Unmarshal(req.Body, &body); err != nil {
			data["parse_error"] = err.Error()
			data["raw_body"] = string(req.Body)
			return data
		}
	}
	data["body"] = body

	if webhookType == nil {
		return data
	}
	switch *webhookType {
	case trigger.WebhookTelegram:
		parseTelegram(body, data)
	case trigger.WebhookSlack:
		parseSlack(body, data)
	case trigger.WebhookGitHub:
		parseGitHub(req, body, data)
	case trigger.WebhookDiscord:
		parseDiscord(body, data)
	case trigger.WebhookStripe:
		parseStripe(body, data)
	case trigger.WebhookGeneric:
		// body already attached verbatim
	}
	return data
}

func flattenHeaders(h map[string][]string) map[string]string {
	out := make(map[string]string, len(h))
	for k, v := range h {
		if len(v) > 0 {
			out[k] = v[0]
		}
	}
	return out
}

func nested(m map[string]any, path ...string) any {
	var cur any = m
	for _, p := range path {
		asMap, ok := cur.(map[string]any)
		if !ok {
			return nil
		}
		cur = asMap[p]
	}
	return cur
}

// parseTelegram extracts the fields spec §4.5 names explicitly for the
// telegram provider: update_id, message.chat.id, from.id/username, text,
// attachments.
func parseTelegram(body map[string]any, data map[string]any) {
	if body == nil {
		return
	}
	data["update_id"] = body["update_id"]
	message, _ := body["message"].(map[string]any)
	if message == nil {
		return
	}
	data["chat_id"] = nested(message, "chat", "id")
	data["from_id"] = nested(message, "from", "id")
	data["from_username"] = nested(message, "from", "username")
	data["text"] = message["text"]
	if attachments, ok := message["attachments"]; ok {
		data["attachments"] = attachments
	}
}

// parseSlack extracts team_id, channel_id, user_id, text, ts per spec §4.5.
func parseSlack(body map[string]any, data map[string]any) {
	if body == nil {
		return
	}
	data["team_id"] = body["team_id"]
	data["channel_id"] = nested(body, "event", "channel")
	if data["channel_id"] == nil {
		data["channel_id"] = body["channel_id"]
	}
	data["user_id"] = nested(body, "event", "user")
	if data["user_id"] == nil {
		data["user_id"] = body["user_id"]
	}
	data["text"] = nested(body, "event", "text")
	if data["text"] == nil {
		data["text"] = body["text"]
	}
	data["ts"] = body["event_time"]
}

// parseGitHub extracts event/delivery headers and repository.full_name,
// sender.login, action per spec §4.5.
func parseGitHub(req Request, body map[string]any, data map[string]any) {
	data["event"] = req.Headers.Get("X-GitHub-Event")
	data["delivery"] = req.Headers.Get("X-GitHub-Delivery")
	if body == nil {
		return
	}
	data["repository_full_name"] = nested(body, "repository", "full_name")
	data["sender_login"] = nested(body, "sender", "login")
	data["action"] = body["action"]
}

// parseDiscord extracts the interaction/message shape Discord posts.
// Supplemented beyond spec.md's explicit provider list (the webhook_type
// enum names discord as a variant; this fills in the parse rule the
// distillation omitted).
func parseDiscord(body map[string]any, data map[string]any) {
	if body == nil {
		return
	}
	data["interaction_type"] = body["type"]
	data["guild_id"] = body["guild_id"]
	data["channel_id"] = body["channel_id"]
	data["author_id"] = nested(body, "author", "id")
	data["content"] = body["content"]
}

// parseStripe extracts the event envelope Stripe posts. Supplemented for the
// same reason as parseDiscord.
func parseStripe(body map[string]any, data map[string]any) {
	if body == nil {
		return
	}
	data["event_id"] = body["id"]
	data["event_type"] = body["type"]
	data["object"] = nested(body, "data", "object")
}
