package models

import (
	"encoding/json"
	"errors"
	"strings"
	"time"
)

const (
	StepSuccess     = "success"
	OrderStatusPaid = "paid"
)

var ErrMissingTimestamp = errors.New("session has no activity timestamp")

type Contact struct {
	Name  string `json:"name"`
	Phone string `json:"phone"`
	Email string `json:"email"`
	CPF   string `json:"cpf"`
}

func (c *Contact) UnmarshalJSON(b []byte) error {
	if !isObject(b) {
		return nil
	}
	var raw struct {
		Name  json.RawMessage `json:"name"`
		Phone json.RawMessage `json:"phone"`
		Email json.RawMessage `json:"email"`
		CPF   json.RawMessage `json:"cpf"`
	}
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	*c = Contact{
		Name:  looseString(raw.Name),
		Phone: looseString(raw.Phone),
		Email: looseString(raw.Email),
		CPF:   looseString(raw.CPF),
	}
	return nil
}

type Activity struct {
	CurrentStep  string    `json:"current_step"`
	IsActive     bool      `json:"is_active"`
	LastActivity Timestamp `json:"last_activity"`
}

func (a *Activity) UnmarshalJSON(b []byte) error {
	if !isObject(b) {
		return nil
	}
	var raw struct {
		CurrentStep  json.RawMessage `json:"current_step"`
		IsActive     json.RawMessage `json:"is_active"`
		LastActivity Timestamp       `json:"last_activity"`
	}
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	*a = Activity{
		CurrentStep:  looseString(raw.CurrentStep),
		IsActive:     looseBool(raw.IsActive),
		LastActivity: raw.LastActivity,
	}
	return nil
}

type CartItem struct {
	ID          string `json:"id,omitempty"`
	Name        string `json:"name"`
	Quantity    int    `json:"quantity"`
	TotalPrice  Amount `json:"totalPrice"`
	UnitPrice   Amount `json:"unitPrice"`
	VariationID string `json:"variationId,omitempty"`
}

// UnmarshalJSON accepts ids and quantities as numbers or strings; an item of
// any other shape decodes to the zero item.
func (i *CartItem) UnmarshalJSON(b []byte) error {
	if !isObject(b) {
		return nil
	}
	var raw struct {
		ID          json.RawMessage `json:"id"`
		Name        json.RawMessage `json:"name"`
		Quantity    json.RawMessage `json:"quantity"`
		TotalPrice  Amount          `json:"totalPrice"`
		UnitPrice   Amount          `json:"unitPrice"`
		VariationID json.RawMessage `json:"variationId"`
	}
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	*i = CartItem{
		ID:          looseString(raw.ID),
		Name:        looseString(raw.Name),
		Quantity:    looseInt(raw.Quantity),
		TotalPrice:  raw.TotalPrice,
		UnitPrice:   raw.UnitPrice,
		VariationID: looseString(raw.VariationID),
	}
	return nil
}

type Cart struct {
	Items       []CartItem `json:"items"`
	ItemCount   int        `json:"itemCount"`
	Total       Amount     `json:"total"`
	Subtotal    Amount     `json:"subtotal"`
	RecoveryURL string     `json:"recoveryUrl"`
}

func (c *Cart) UnmarshalJSON(b []byte) error {
	if !isObject(b) {
		return nil
	}
	var raw struct {
		Items       json.RawMessage `json:"items"`
		ItemCount   json.RawMessage `json:"itemCount"`
		Total       Amount          `json:"total"`
		Subtotal    Amount          `json:"subtotal"`
		RecoveryURL json.RawMessage `json:"recoveryUrl"`
	}
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	*c = Cart{
		Items:       looseItems(raw.Items),
		ItemCount:   looseInt(raw.ItemCount),
		Total:       raw.Total,
		Subtotal:    raw.Subtotal,
		RecoveryURL: looseString(raw.RecoveryURL),
	}
	return nil
}

type Address struct {
	CEP          string `json:"cep"`
	City         string `json:"city"`
	Complement   string `json:"complement"`
	Neighborhood string `json:"neighborhood"`
	Number       string `json:"number"`
	State        string `json:"state"`
	Street       string `json:"street"`
}

func (a *Address) UnmarshalJSON(b []byte) error {
	if !isObject(b) {
		return nil
	}
	var raw struct {
		CEP          json.RawMessage `json:"cep"`
		City         json.RawMessage `json:"city"`
		Complement   json.RawMessage `json:"complement"`
		Neighborhood json.RawMessage `json:"neighborhood"`
		Number       json.RawMessage `json:"number"`
		State        json.RawMessage `json:"state"`
		Street       json.RawMessage `json:"street"`
	}
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	*a = Address{
		CEP:          looseString(raw.CEP),
		City:         looseString(raw.City),
		Complement:   looseString(raw.Complement),
		Neighborhood: looseString(raw.Neighborhood),
		Number:       looseString(raw.Number),
		State:        looseString(raw.State),
		Street:       looseString(raw.Street),
	}
	return nil
}

type Location struct {
	IP        string  `json:"ip"`
	City      string  `json:"city"`
	Country   string  `json:"country"`
	Region    string  `json:"region"`
	Latitude  float64 `json:"latitude,omitempty"`
	Longitude float64 `json:"longitude,omitempty"`
}

func (l *Location) UnmarshalJSON(b []byte) error {
	if !isObject(b) {
		return nil
	}
	var raw struct {
		IP        json.RawMessage `json:"ip"`
		City      json.RawMessage `json:"city"`
		Country   json.RawMessage `json:"country"`
		Region    json.RawMessage `json:"region"`
		Latitude  json.RawMessage `json:"latitude"`
		Longitude json.RawMessage `json:"longitude"`
	}
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	lat, _ := looseFloat(raw.Latitude)
	lng, _ := looseFloat(raw.Longitude)
	*l = Location{
		IP:        looseString(raw.IP),
		City:      looseString(raw.City),
		Country:   looseString(raw.Country),
		Region:    looseString(raw.Region),
		Latitude:  lat,
		Longitude: lng,
	}
	return nil
}

type Order struct {
	OrderID       string `json:"order_id"`
	OrderStatus   string `json:"order_status"`
	PaymentMethod string `json:"payment_method"`
}

func (o *Order) UnmarshalJSON(b []byte) error {
	if !isObject(b) {
		return nil
	}
	var raw struct {
		OrderID       json.RawMessage `json:"order_id"`
		OrderStatus   json.RawMessage `json:"order_status"`
		PaymentMethod json.RawMessage `json:"payment_method"`
	}
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	*o = Order{
		OrderID:       looseString(raw.OrderID),
		OrderStatus:   looseString(raw.OrderStatus),
		PaymentMethod: looseString(raw.PaymentMethod),
	}
	return nil
}

type Notifications struct {
	AbandonedCart Marker `json:"abandoned_cart"`
}

// CheckoutSession is one customer's checkout flow as stored upstream under
// checkout_sessions/{id}. The monitor only ever writes notifications.
type CheckoutSession struct {
	ID               string        `json:"id"`
	StartTime        Timestamp     `json:"startTime"`
	LastUpdate       Timestamp     `json:"lastUpdate"`
	UpdatedAt        Timestamp     `json:"updated_at"`
	CurrentStep      string        `json:"currentStep"`
	Activity         Activity      `json:"activity"`
	Contact          Contact       `json:"contact"`
	Cart             Cart          `json:"cart"`
	Address          Address       `json:"address"`
	Location         Location      `json:"location"`
	Order            *Order        `json:"order,omitempty"`
	Notifications    Notifications `json:"notifications"`
	UserAgent        string        `json:"userAgent,omitempty"`
	ScreenResolution string        `json:"screenResolution,omitempty"`
}

// UnmarshalJSON decodes a session record. Only an object under "order"
// marks the session as ordered; false or an empty string does not.
func (s *CheckoutSession) UnmarshalJSON(b []byte) error {
	type plain CheckoutSession
	var raw struct {
		plain
		ID               json.RawMessage `json:"id"`
		CurrentStep      json.RawMessage `json:"currentStep"`
		Order            json.RawMessage `json:"order"`
		UserAgent        json.RawMessage `json:"userAgent"`
		ScreenResolution json.RawMessage `json:"screenResolution"`
	}
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	*s = CheckoutSession(raw.plain)
	s.ID = looseString(raw.ID)
	s.CurrentStep = looseString(raw.CurrentStep)
	s.UserAgent = looseString(raw.UserAgent)
	s.ScreenResolution = looseString(raw.ScreenResolution)
	s.Order = nil
	if isObject(raw.Order) {
		var order Order
		if err := json.Unmarshal(raw.Order, &order); err != nil {
			return err
		}
		s.Order = &order
	}
	return nil
}

// Snapshot is the full checkout_sessions collection as delivered by a feed.
type Snapshot []CheckoutSession

func (s *CheckoutSession) HasContact() bool {
	return strings.TrimSpace(s.Contact.Name) != "" && strings.TrimSpace(s.Contact.Phone) != ""
}

// Step prefers the top-level currentStep and falls back to activity.current_step.
func (s *CheckoutSession) Step() string {
	if s.CurrentStep != "" {
		return s.CurrentStep
	}
	return s.Activity.CurrentStep
}

// Converted reports whether the session reached an order or the success step.
func (s *CheckoutSession) Converted() bool {
	return s.Order != nil || s.CurrentStep == StepSuccess || s.Activity.CurrentStep == StepSuccess
}

func (s *CheckoutSession) Paid() bool {
	return s.Order != nil && s.Order.OrderStatus == OrderStatusPaid
}

// LastActivityTime returns activity.last_activity when present, otherwise lastUpdate.
func (s *CheckoutSession) LastActivityTime() (time.Time, error) {
	if !s.Activity.LastActivity.IsZero() {
		return s.Activity.LastActivity.Time, nil
	}
	if !s.LastUpdate.IsZero() {
		return s.LastUpdate.Time, nil
	}
	return time.Time{}, ErrMissingTimestamp
}

func (s *CheckoutSession) IdleFor(now time.Time) (time.Duration, error) {
	last, err := s.LastActivityTime()
	if err != nil {
		return 0, err
	}
	return now.Sub(last), nil
}

func (s *CheckoutSession) AlreadyNotified() bool {
	return s.Notifications.AbandonedCart.Set
}
