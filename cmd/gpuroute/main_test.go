package main

import (
	"bytes"
	"testing"
)

func TestRun_HelpPrintsUsage(t *testing.T) {
	var out, errOut bytes.Buffer
	code := Run([]string{"gpuroute", "help"}, &out, &errOut)
	if code != exitOK {
		t.Fatalf("expected exit 0, got %d", code)
	}
	if out.Len() == 0 {
		t.Fatal("expected usage text on stdout")
	}
}

func TestRun_UnknownCommandIsInvalidInput(t *testing.T) {
	var out, errOut bytes.Buffer
	code := Run([]string{"gpuroute", "bogus"}, &out, &errOut)
	if code != exitInvalidInput {
		t.Fatalf("expected exit %d, got %d", exitInvalidInput, code)
	}
}

func TestRun_ConfigureListsProfiles(t *testing.T) {
	var out, errOut bytes.Buffer
	code := Run([]string{"gpuroute", "configure", "--profiles-dir", "../../pkg/config/profiles"}, &out, &errOut)
	if code != exitOK {
		t.Fatalf("expected exit 0, got %d: %s", code, errOut.String())
	}
	if out.Len() == 0 {
		t.Fatal("expected profile listing on stdout")
	}
}

func TestRun_DecideRequiresTenantAndCandidates(t *testing.T) {
	var out, errOut bytes.Buffer
	code := Run([]string{"gpuroute", "decide"}, &out, &errOut)
	if code != exitInvalidInput {
		t.Fatalf("expected exit %d, got %d", exitInvalidInput, code)
	}
}
