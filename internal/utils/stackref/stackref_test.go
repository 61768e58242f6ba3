package stackref

import (
	"reflect"
	"testing"

	"github.com/pulumi/pulumi/sdk/v3/go/common/resource"
	"github.com/pulumi/pulumi/sdk/v3/go/pulumi"
)

type refMocks struct{}

func (refMocks) NewResource(args pulumi.MockResourceArgs) (string, resource.PropertyMap, error) {
	if args.TypeToken == "pulumi:pulumi:StackReference" {
		return args.Name + "_id", resource.PropertyMap{
			"outputs": resource.NewObjectProperty(resource.PropertyMap{
				"vpc_id": resource.NewStringProperty("vpc-0abc"),
				"subnet_ids": resource.NewArrayProperty([]resource.PropertyValue{
					resource.NewStringProperty("subnet-1"),
					resource.NewStringProperty("subnet-2"),
				}),
				"not_strings": resource.NewArrayProperty([]resource.PropertyValue{
					resource.NewNumberProperty(1),
				}),
			}),
		}, nil
	}
	return args.Name + "_id", args.Inputs, nil
}

func (refMocks) Call(args pulumi.MockCallArgs) (resource.PropertyMap, error) {
	return resource.PropertyMap{}, nil
}

func TestTypedAccessors(t *testing.T) {
	t.Parallel()
	strCh := make(chan string, 1)
	arrCh := make(chan []string, 1)
	missingCh := make(chan []string, 1)
	mixedCh := make(chan []string, 1)

	err := pulumi.RunErr(func(ctx *pulumi.Context) error {
		ref, err := pulumi.NewStackReference(ctx, "organization/builder-space-eks/eks", nil)
		if err != nil {
			return err
		}
		String(ref, "vpc_id").ApplyT(func(v string) string {
			strCh <- v
			return v
		})
		StringArray(ref, "subnet_ids").ApplyT(func(v []string) []string {
			arrCh <- v
			return v
		})
		StringArray(ref, "absent").ApplyT(func(v []string) []string {
			missingCh <- v
			return v
		})
		StringArray(ref, "not_strings").ApplyT(func(v []string) []string {
			mixedCh <- v
			return v
		})
		return nil
	}, pulumi.WithMocks("infra-efs", "efs", refMocks{}))
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}

	if got := <-strCh; got != "vpc-0abc" {
		t.Fatalf("String = %q", got)
	}
	if got := <-arrCh; !reflect.DeepEqual(got, []string{"subnet-1", "subnet-2"}) {
		t.Fatalf("StringArray = %v", got)
	}
	if got := <-missingCh; len(got) != 0 {
		t.Fatalf("missing key should resolve empty, got %v", got)
	}
	if got := <-mixedCh; len(got) != 0 {
		t.Fatalf("non-string entries should be dropped, got %v", got)
	}
}
