package metrics

import "go.opentelemetry.io/otel/attribute"

// attrsFromLabels turns the positional label-value strings used by the
// Provider interface into OTel attributes, keyed generically since Provider
// callers don't carry label names past registration time.
func attrsFromLabels(labels []string) []attribute.KeyValue {
	if len(labels) == 0 {
		return nil
	}
	attrs := make([]attribute.KeyValue, len(labels))
	for i, v := range labels {
		attrs[i] = attribute.String("label", v)
	}
	return attrs
}
