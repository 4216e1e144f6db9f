package memoircmder_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	memoircmder "github.com/papercomputeco/memoir/cmd/memoir"
)

var _ = Describe("NewMemoirCmd", func() {
	It("registers every subcommand", func() {
		cmd := memoircmder.NewMemoirCmd()
		names := []string{}
		for _, sub := range cmd.Commands() {
			names = append(names, sub.Name())
		}
		Expect(names).To(ContainElements("serve", "chat", "recall", "config", "auth", "init", "version"))
	})

	It("has the global flags", func() {
		cmd := memoircmder.NewMemoirCmd()
		Expect(cmd.PersistentFlags().Lookup("debug")).NotTo(BeNil())
		Expect(cmd.PersistentFlags().Lookup("config-dir")).NotTo(BeNil())
	})

	It("reports the recall --user requirement through the root", func() {
		cmd := memoircmder.NewMemoirCmd()
		cmd.SetArgs([]string{"recall", "search", "tea", "--config-dir", GinkgoT().TempDir()})
		Expect(cmd.Execute()).To(MatchError(ContainSubstring("--user is required")))
	})
})
