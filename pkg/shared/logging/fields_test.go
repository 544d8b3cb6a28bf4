package logging

import (
	"errors"
	"testing"
	"time"
)

func TestNewFields(t *testing.T) {
	fields := NewFields()
	if fields == nil {
		t.Fatal("NewFields() returned nil")
	}
	if len(fields) != 0 {
		t.Errorf("NewFields() should be empty, got %d fields", len(fields))
	}
}

func TestStandardFields_Component(t *testing.T) {
	fields := NewFields().Component("test-component")

	if fields["component"] != "test-component" {
		t.Errorf("Component() = %v, want %v", fields["component"], "test-component")
	}
}

func TestStandardFields_Operation(t *testing.T) {
	fields := NewFields().Operation("create")

	if fields["operation"] != "create" {
		t.Errorf("Operation() = %v, want %v", fields["operation"], "create")
	}
}

func TestStandardFields_Resource(t *testing.T) {
	fields := NewFields().Resource("execution", "exec-1")

	if fields["resource_type"] != "execution" {
		t.Errorf("Resource() resource_type = %v, want %v", fields["resource_type"], "execution")
	}
	if fields["resource_name"] != "exec-1" {
		t.Errorf("Resource() resource_name = %v, want %v", fields["resource_name"], "exec-1")
	}
}

func TestStandardFields_ResourceWithoutName(t *testing.T) {
	fields := NewFields().Resource("execution", "")

	if fields["resource_type"] != "execution" {
		t.Errorf("Resource() resource_type = %v, want %v", fields["resource_type"], "execution")
	}
	if _, exists := fields["resource_name"]; exists {
		t.Error("Resource() should not set resource_name when empty")
	}
}

func TestStandardFields_TenantAndExecution(t *testing.T) {
	fields := NewFields().Tenant("tenant-1").Execution("exec-1")

	if fields["tenant_id"] != "tenant-1" {
		t.Errorf("Tenant() = %v, want %v", fields["tenant_id"], "tenant-1")
	}
	if fields["execution_id"] != "exec-1" {
		t.Errorf("Execution() = %v, want %v", fields["execution_id"], "exec-1")
	}
}

func TestStandardFields_Duration(t *testing.T) {
	duration := 150 * time.Millisecond
	fields := NewFields().Duration(duration)

	if fields["duration_ms"] != int64(150) {
		t.Errorf("Duration() = %v, want %v", fields["duration_ms"], int64(150))
	}
}

func TestStandardFields_Error(t *testing.T) {
	err := errors.New("test error")
	fields := NewFields().Error(err)

	if fields["error"] != "test error" {
		t.Errorf("Error() = %v, want %v", fields["error"], "test error")
	}
}

func TestStandardFields_ErrorNil(t *testing.T) {
	fields := NewFields().Error(nil)

	if _, exists := fields["error"]; exists {
		t.Error("Error(nil) should not set error field")
	}
}

func TestStandardFields_KeysAndValues(t *testing.T) {
	fields := NewFields().Component("admission").Operation("checkLimit")
	kv := fields.KeysAndValues()

	if len(kv) != 4 {
		t.Fatalf("KeysAndValues() length = %d, want 4", len(kv))
	}

	seen := map[any]any{}
	for i := 0; i < len(kv); i += 2 {
		seen[kv[i]] = kv[i+1]
	}
	if seen["component"] != "admission" {
		t.Errorf("KeysAndValues() component = %v, want admission", seen["component"])
	}
	if seen["operation"] != "checkLimit" {
		t.Errorf("KeysAndValues() operation = %v, want checkLimit", seen["operation"])
	}
}
