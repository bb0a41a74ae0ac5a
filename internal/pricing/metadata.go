package pricing

import (
	"fmt"
	"strconv"

	"github.com/ApollonSMK/MEXperience-sub003/internal/domain"
)

// The provider's metadata channel is string-only. Each transaction kind
// gets a typed struct with an explicit encode/decode pair instead of ad
// hoc coercion at call sites; "kind" is the discriminator key. Integers
// are base-10 strings, booleans "true"/"false", absent optionals are
// omitted keys.

type Kind string

const (
	KindAppointment  Kind = "appointment"
	KindGiftCard     Kind = "gift_card"
	KindMinutePack   Kind = "minute_pack"
	KindSubscription Kind = "subscription"
)

const kindKey = "kind"

func DecodeKind(md map[string]string) (Kind, error) {
	switch Kind(md[kindKey]) {
	case KindAppointment, KindGiftCard, KindMinutePack, KindSubscription:
		return Kind(md[kindKey]), nil
	case "":
		return "", fmt.Errorf("metadata key %q: %w", kindKey, domain.ErrMissingField)
	default:
		return "", fmt.Errorf("metadata kind %q: %w", md[kindKey], domain.ErrMissingField)
	}
}

type AppointmentMeta struct {
	ServiceID   string
	UserID      string // empty for guest checkout
	Date        string // "2006-01-02"
	Time        string // "15:04"
	DurationMin int
	Method      string
}

func (m AppointmentMeta) Encode() map[string]string {
	md := map[string]string{
		kindKey:    string(KindAppointment),
		"service":  m.ServiceID,
		"date":     m.Date,
		"time":     m.Time,
		"duration": strconv.Itoa(m.DurationMin),
		"method":   m.Method,
	}
	if m.UserID != "" {
		md["user"] = m.UserID
	}
	return md
}

func DecodeAppointment(md map[string]string) (AppointmentMeta, error) {
	var m AppointmentMeta
	var err error
	if m.ServiceID, err = require(md, "service"); err != nil {
		return m, err
	}
	if m.Date, err = require(md, "date"); err != nil {
		return m, err
	}
	if m.Time, err = require(md, "time"); err != nil {
		return m, err
	}
	if m.Method, err = require(md, "method"); err != nil {
		return m, err
	}
	if m.DurationMin, err = requireInt(md, "duration"); err != nil {
		return m, err
	}
	m.UserID = md["user"]
	return m, nil
}

type GiftCardMeta struct {
	BuyerUserID    string
	RecipientEmail string
	SenderName     string
	RecipientName  string
	Message        string
}

func (m GiftCardMeta) Encode() map[string]string {
	md := map[string]string{kindKey: string(KindGiftCard)}
	put(md, "buyer", m.BuyerUserID)
	put(md, "recipient_email", m.RecipientEmail)
	put(md, "sender_name", m.SenderName)
	put(md, "recipient_name", m.RecipientName)
	put(md, "message", m.Message)
	return md
}

func DecodeGiftCard(md map[string]string) (GiftCardMeta, error) {
	return GiftCardMeta{
		BuyerUserID:    md["buyer"],
		RecipientEmail: md["recipient_email"],
		SenderName:     md["sender_name"],
		RecipientName:  md["recipient_name"],
		Message:        md["message"],
	}, nil
}

type MinutePackMeta struct {
	PackID  string
	UserID  string
	Minutes int
}

func (m MinutePackMeta) Encode() map[string]string {
	return map[string]string{
		kindKey:   string(KindMinutePack),
		"pack":    m.PackID,
		"user":    m.UserID,
		"minutes": strconv.Itoa(m.Minutes),
	}
}

func DecodeMinutePack(md map[string]string) (MinutePackMeta, error) {
	var m MinutePackMeta
	var err error
	if m.PackID, err = require(md, "pack"); err != nil {
		return m, err
	}
	if m.UserID, err = require(md, "user"); err != nil {
		return m, err
	}
	if m.Minutes, err = requireInt(md, "minutes"); err != nil {
		return m, err
	}
	return m, nil
}

type SubscriptionMeta struct {
	PlanID  string
	UserID  string
	Minutes int
}

func (m SubscriptionMeta) Encode() map[string]string {
	return map[string]string{
		kindKey:   string(KindSubscription),
		"plan":    m.PlanID,
		"user":    m.UserID,
		"minutes": strconv.Itoa(m.Minutes),
	}
}

func DecodeSubscription(md map[string]string) (SubscriptionMeta, error) {
	var m SubscriptionMeta
	var err error
	if m.PlanID, err = require(md, "plan"); err != nil {
		return m, err
	}
	if m.UserID, err = require(md, "user"); err != nil {
		return m, err
	}
	if m.Minutes, err = requireInt(md, "minutes"); err != nil {
		return m, err
	}
	return m, nil
}

func put(md map[string]string, k, v string) {
	if v != "" {
		md[k] = v
	}
}

func require(md map[string]string, k string) (string, error) {
	v, ok := md[k]
	if !ok || v == "" {
		return "", fmt.Errorf("metadata key %q: %w", k, domain.ErrMissingField)
	}
	return v, nil
}

func requireInt(md map[string]string, k string) (int, error) {
	v, err := require(md, k)
	if err != nil {
		return 0, err
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("metadata key %q=%q: %w", k, v, domain.ErrMissingField)
	}
	return n, nil
}
