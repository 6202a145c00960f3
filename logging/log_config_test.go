package logging

import (
	"testing"

	"go.viam.com/test"
)

func TestValidatePattern(t *testing.T) {
	t.Parallel()

	for _, tc := range []struct {
		pattern string
		isValid bool
	}{
		{"fieldvision.pipeline", true},
		{"fieldvision.pipeline.*", true},
		{"fieldvision.*.goals", true},
		{"*.goals", true},
		{"*", true},
		{"camera-0.goal_detector", true},

		{"fieldvision..pipeline", false},
		{"fieldvision.pipeline.", false},
		{".fieldvision", false},
		{"fieldvision.**", false},
		{"_.fieldvision", false},
		{"fieldvision.-", false},
	} {
		tc := tc
		t.Run(tc.pattern, func(t *testing.T) {
			t.Parallel()
			test.That(t, validatePattern(tc.pattern), test.ShouldEqual, tc.isValid)
		})
	}
}

func TestRegistryUpdateConfig(t *testing.T) {
	registry := NewRegistry()
	for _, name := range []string{"fieldvision.classifier", "fieldvision.goals", "fieldvision.goals.ransac"} {
		registry.Register(NewBlankLogger(name))
	}

	err := registry.UpdateConfig([]LoggerPatternConfig{
		{Pattern: "fieldvision.goals", Level: "debug"},
		{Pattern: "fieldvision.goals.*", Level: "debug"},
		{Pattern: "fieldvision.goals.ransac", Level: "error"},
		{Pattern: "not..valid", Level: "debug"},
	}, NewTestLogger(t))
	test.That(t, err, test.ShouldBeNil)

	for name, level := range map[string]Level{
		"fieldvision.classifier":   INFO,
		"fieldvision.goals":        DEBUG,
		"fieldvision.goals.ransac": ERROR,
	} {
		logger, ok := registry.LoggerNamed(name)
		test.That(t, ok, test.ShouldBeTrue)
		test.That(t, logger.GetLevel(), test.ShouldEqual, level)
	}

	// Loggers registered later pick up the current patterns.
	late := registry.Register(NewBlankLogger("fieldvision.goals.merge"))
	test.That(t, late.GetLevel(), test.ShouldEqual, DEBUG)

	// Re-registering a name returns the existing logger.
	again := registry.Register(NewBlankLogger("fieldvision.goals.merge"))
	test.That(t, again, test.ShouldEqual, late)

	test.That(t, registry.Deregister("fieldvision.goals.merge"), test.ShouldBeTrue)
	test.That(t, registry.Deregister("fieldvision.goals.merge"), test.ShouldBeFalse)

	err = registry.UpdateConfig([]LoggerPatternConfig{{Pattern: "*", Level: "loud"}}, NewTestLogger(t))
	test.That(t, err, test.ShouldNotBeNil)
}
