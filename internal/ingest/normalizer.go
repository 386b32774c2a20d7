// Package ingest turns verified provider webhooks into persisted messages.
package ingest

import (
	"strconv"
	"strings"

	"github.com/capitalize-ai/team-inbox/internal/apperr"
	"github.com/capitalize-ai/team-inbox/internal/model"
)

// WhatsAppPrefix marks WhatsApp addresses in provider payloads.
const WhatsAppPrefix = "whatsapp:"

// CanonicalAddress strips the channel marker and surrounding whitespace so the
// same phone number normalizes identically on every channel.
func CanonicalAddress(addr string) string {
	addr = strings.TrimSpace(addr)
	if len(addr) >= len(WhatsAppPrefix) && strings.EqualFold(addr[:len(WhatsAppPrefix)], WhatsAppPrefix) {
		addr = addr[len(WhatsAppPrefix):]
	}
	return strings.TrimSpace(addr)
}

// DetectChannel classifies a sender address.
func DetectChannel(from string) model.ChannelType {
	from = strings.TrimSpace(from)
	if len(from) >= len(WhatsAppPrefix) && strings.EqualFold(from[:len(WhatsAppPrefix)], WhatsAppPrefix) {
		return model.ChannelWhatsApp
	}
	return model.ChannelSMS
}

// Normalize converts a provider payload into an Envelope. The payload must
// already have passed signature verification.
func Normalize(p model.InboundPayload) (*model.Envelope, error) {
	from := CanonicalAddress(p.From)
	to := CanonicalAddress(p.To)
	if from == "" {
		return nil, apperr.Validation("missing sender address")
	}
	if to == "" {
		return nil, apperr.Validation("missing recipient address")
	}

	env := &model.Envelope{
		Channel:           DetectChannel(p.From),
		FromAddress:       from,
		ToAddress:         to,
		Body:              p.Body,
		ProviderMessageID: strings.TrimSpace(p.MessageSid),
	}

	// An unparsable or non-positive count means the message carries no media.
	if count, err := strconv.Atoi(strings.TrimSpace(p.NumMedia)); err == nil && count > 0 && p.MediaURL0 != "" {
		url := p.MediaURL0
		env.MediaURL = &url
		if p.MediaContentType0 != "" {
			ct := p.MediaContentType0
			env.MediaContentType = &ct
		}
	}

	return env, nil
}
