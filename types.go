package main

type Notification struct {
	Title   string `json:"title,omitempty"`
	Message string `json:"message,omitempty"`
}

// SetValue is the service data for input_number.set_value.
type SetValue struct {
	EntityID string  `json:"entity_id"`
	Value    float64 `json:"value"`
}

type stateChange struct {
	entity string
	state  interface{}
}
