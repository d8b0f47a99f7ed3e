package tee_test

import (
	"testing"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
)

func TestTee(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, t.Name())
}
