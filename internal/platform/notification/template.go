package notification

import (
	"fmt"
	"strings"
	"sync"
)

// Template renders a notification title and message from {{key}}
// placeholders.
type Template struct {
	Type    Type
	Title   string
	Message string
}

// TemplateEngine holds one template per notification type.
type TemplateEngine struct {
	mu        sync.RWMutex
	templates map[Type]Template
}

func NewTemplateEngine() *TemplateEngine {
	e := &TemplateEngine{templates: make(map[Type]Template)}
	for _, t := range builtIn {
		e.templates[t.Type] = t
	}
	return e
}

var builtIn = []Template{
	{
		Type:    TypeRequestCreated,
		Title:   "New medication request",
		Message: "Request {{request_number}} asks for {{quantity}} x {{product_name}} and is waiting for review.",
	},
	{
		Type:    TypeRequestApproved,
		Title:   "Request approved",
		Message: "Your request {{request_number}} for {{product_name}} was approved and will be filled from batch {{batch_id}}.",
	},
	{
		Type:    TypeRequestRejected,
		Title:   "Request rejected",
		Message: "Your request {{request_number}} for {{product_name}} was rejected: {{rejection_reason}}",
	},
	{
		Type:    TypeRequestCancelled,
		Title:   "Request cancelled",
		Message: "Request {{request_number}} for {{product_name}} was cancelled.",
	},
	{
		Type:    TypeRequestInTransit,
		Title:   "Request shipped",
		Message: "Your request {{request_number}} for {{product_name}} is on its way.",
	},
	{
		Type:    TypeRequestDelivered,
		Title:   "Request delivered",
		Message: "Your request {{request_number}} for {{product_name}} was delivered.",
	},
}

// Register adds or replaces the template for t.Type.
func (e *TemplateEngine) Register(t Template) {
	e.mu.Lock()
	e.templates[t.Type] = t
	e.mu.Unlock()
}

// Render fills the template for typ. Placeholders without data are left
// as-is.
func (e *TemplateEngine) Render(typ Type, data map[string]string) (title, message string, err error) {
	e.mu.RLock()
	t, ok := e.templates[typ]
	e.mu.RUnlock()
	if !ok {
		return "", "", fmt.Errorf("no template for notification type %q", typ)
	}

	title, message = t.Title, t.Message
	for k, v := range data {
		placeholder := "{{" + k + "}}"
		title = strings.ReplaceAll(title, placeholder, v)
		message = strings.ReplaceAll(message, placeholder, v)
	}
	return title, message, nil
}
