package phenexerr

import (
	"errors"
	"fmt"
	"testing"
)

func TestSchemaErrorMessage(t *testing.T) {
	err := &SchemaError{Node: "entry", Column: "PERSON_ID", Detail: "required by join"}
	want := `schema error in node "entry": missing column "PERSON_ID": required by join`
	if got := err.Error(); got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}

	noColumn := &SchemaError{Node: "entry", Detail: "table has no rows"}
	want = `schema error in node "entry": table has no rows`
	if got := noColumn.Error(); got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
}

func TestConfigurationErrorMessage(t *testing.T) {
	err := &ConfigurationError{Node: "cohort", Detail: "requires an entry criterion"}
	want := `configuration error in "cohort": requires an entry criterion`
	if got := err.Error(); got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}

	noNode := &ConfigurationError{Detail: "lazy execution requires a connector"}
	want = "configuration error: lazy execution requires a connector"
	if got := noNode.Error(); got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
}

func TestCycleErrorMessage(t *testing.T) {
	err := &CycleError{Cycle: []string{"a", "b", "a"}}
	if got := err.Error(); got == "" {
		t.Error("Error() should not be empty")
	}
}

func TestComputationErrorWrapsCause(t *testing.T) {
	cause := fmt.Errorf("divide by zero")
	err := &ComputationError{Node: "rate", Err: cause}

	if !errors.Is(err, cause) {
		t.Error("errors.Is should find the wrapped cause through Unwrap")
	}

	var target *ComputationError
	if !errors.As(err, &target) {
		t.Fatal("errors.As should match ComputationError")
	}
	if target.Node != "rate" {
		t.Errorf("target.Node = %q, want rate", target.Node)
	}
}

func TestLookupErrorMessage(t *testing.T) {
	err := &LookupError{Kind: "node", Name: "missing_phenotype"}
	want := `node not found: "missing_phenotype"`
	if got := err.Error(); got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
}

func TestCodelistResolutionErrorMessage(t *testing.T) {
	err := &CodelistResolutionError{Node: "diabetes", Name: "ICD10:E11", Detail: "codelist not registered"}
	if got := err.Error(); got == "" {
		t.Error("Error() should not be empty")
	}
}

func TestErrorTypesAreDistinguishableViaErrorsAs(t *testing.T) {
	var err error = &SchemaError{Node: "x", Detail: "bad"}

	var schemaErr *SchemaError
	if !errors.As(err, &schemaErr) {
		t.Error("errors.As should match SchemaError")
	}

	var configErr *ConfigurationError
	if errors.As(err, &configErr) {
		t.Error("errors.As should not match ConfigurationError for a SchemaError")
	}
}
