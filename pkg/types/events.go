package types

import "encoding/json"

// Body implements messaging.TopicMessage by JSON-marshalling the event
// itself, the pattern the bus client expects from everything it is
// asked to publish.

func (m *Metric) Body() []byte {
	b, _ := json.Marshal(m)
	return b
}

func (i *Inventory) Body() []byte {
	b, _ := json.Marshal(i)
	return b
}

func (a *Alert) Body() []byte {
	b, _ := json.Marshal(a)
	return b
}

func (r *Rule) Body() []byte {
	b, _ := json.Marshal(r)
	return b
}
