// Package stackref narrows StackReference outputs to the types the
// downstream stacks consume.
package stackref

import (
	"github.com/pulumi/pulumi/sdk/v3/go/pulumi"
)

// String reads a single string output from another stack.
func String(ref *pulumi.StackReference, key string) pulumi.StringOutput {
	return ref.GetStringOutput(pulumi.String(key))
}

// StringArray reads a string slice output from another stack. Missing keys
// resolve to an empty slice rather than failing the deployment.
func StringArray(ref *pulumi.StackReference, key string) pulumi.StringArrayOutput {
	return ref.GetOutput(pulumi.String(key)).ApplyT(func(v any) []string {
		items, ok := v.([]any)
		if !ok {
			return nil
		}
		out := make([]string, 0, len(items))
		for _, item := range items {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}).(pulumi.StringArrayOutput)
}
