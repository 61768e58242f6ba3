package awsapi

import "testing"

func TestPartitionForRegion(t *testing.T) {
	tests := []struct {
		region string
		want   string
	}{
		{"af-south-1", "aws"},
		{"us-east-1", "aws"},
		{"eu-west-1", "aws"},
		{"cn-north-1", "aws-cn"},
		{"us-gov-west-1", "aws-us-gov"},
		{"", "aws"},
	}
	for _, tt := range tests {
		if got := PartitionForRegion(tt.region); got != tt.want {
			t.Fatalf("PartitionForRegion(%q) = %q, want %q", tt.region, got, tt.want)
		}
	}
}
