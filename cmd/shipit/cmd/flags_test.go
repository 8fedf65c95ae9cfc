package cmd

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/spf13/cobra"

	"github.com/familyevents/shipit/internal/viper"
)

func findCommand(root *cobra.Command, name string) *cobra.Command {
	for _, c := range root.Commands() {
		if c.Name() == name {
			return c
		}
	}
	return nil
}

var _ = Describe("Binding command flags", func() {
	BeforeEach(func() {
		isolateConfig()
	})

	It("should bind the flags of the command that runs", func() {
		root := rootCmd()
		run := findCommand(root, "run")
		serve := findCommand(root, "serve")
		Expect(run).ToNot(BeNil())
		Expect(serve).ToNot(BeNil())

		Expect(serve.Flags().Set("target", "from-serve")).To(Succeed())
		Expect(run.Flags().Set("target", "from-run")).To(Succeed())

		Expect(bindConfigFlags(run, nil)).To(Succeed())
		Expect(viper.Instance().GetString("target")).To(Equal("from-run"))
	})

	It("should leave unset flags to the defaults", func() {
		root := rootCmd()
		run := findCommand(root, "run")

		Expect(bindConfigFlags(run, nil)).To(Succeed())
		Expect(viper.Instance().GetString("branch")).To(Equal("main"))
		Expect(viper.Instance().GetString("tag")).To(Equal("latest"))
	})
})
