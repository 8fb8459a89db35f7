package models

func ModelsToAutoMigrate() []interface{} {
	return []interface{}{
		&MonitoredSource{}, // Must be first - other tables reference it
		&DocumentVersion{},
		&ChangeRecord{},
		&MonitoringCycle{},
	}
}
