package models

import (
	"errors"
	"testing"
)

func TestLokiQueryByPod(t *testing.T) {
	s := Selector{Namespace: "prod", PodName: "api-7f9"}
	q, err := s.LokiQuery()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := `{namespace="prod", pod="api-7f9"}`
	if q != want {
		t.Errorf("query = %s, want %s", q, want)
	}
}

func TestLokiQueryByLabels(t *testing.T) {
	s := Selector{Namespace: "prod", LabelSelector: "app=checkout,version=v2"}
	q, err := s.LokiQuery()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := `{namespace="prod", app="checkout", version="v2"}`
	if q != want {
		t.Errorf("query = %s, want %s", q, want)
	}
}

func TestLokiQueryNamespaceOnly(t *testing.T) {
	s := Selector{Namespace: "prod"}
	q, err := s.LokiQuery()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if q != `{namespace="prod"}` {
		t.Errorf("query = %s", q)
	}
}

func TestLokiQueryPodTakesPrecedence(t *testing.T) {
	s := Selector{Namespace: "prod", PodName: "api-7f9", LabelSelector: "app=checkout"}
	q, err := s.LokiQuery()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if q != `{namespace="prod", pod="api-7f9"}` {
		t.Errorf("query = %s", q)
	}
}

func TestMalformedLabelSelectorRejected(t *testing.T) {
	s := Selector{Namespace: "prod", LabelSelector: "app=checkout,badentry"}

	if _, err := s.LokiQuery(); err == nil {
		t.Fatal("expected error for malformed selector")
	} else {
		var malformed *MalformedSelectorError
		if !errors.As(err, &malformed) {
			t.Errorf("expected MalformedSelectorError, got %T", err)
		}
	}

	if err := s.Validate(); err == nil {
		t.Error("Validate should reject malformed selector")
	}
}

func TestValidateRequiresNamespace(t *testing.T) {
	if err := (Selector{}).Validate(); err == nil {
		t.Error("expected error for missing namespace")
	}
	if err := (Selector{Namespace: "  "}).Validate(); err == nil {
		t.Error("expected error for blank namespace")
	}
}

func TestPromFilter(t *testing.T) {
	if got := (Selector{Namespace: "prod", PodName: "api-7f9"}).PromFilter(); got != `pod="api-7f9"` {
		t.Errorf("PromFilter = %s", got)
	}
	if got := (Selector{Namespace: "prod", LabelSelector: "app=x"}).PromFilter(); got != `namespace="prod"` {
		t.Errorf("PromFilter = %s", got)
	}
}
