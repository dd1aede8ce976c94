// Package models holds the gorm entities of the test-management store.
package models

// All lists every model in migration order.
func All() []interface{} {
	return []interface{}{
		&User{},
		&Session{},
		&Organization{},
		&Membership{},
		&Invite{},
		&Project{},
		&Test{},
		&TestVersion{},
		&TestSuite{},
		&TestSuiteVersion{},
		&TestSuiteTest{},
		&TestSuiteRun{},
		&TestRun{},
		&OrganizationAnalysis{},
	}
}
