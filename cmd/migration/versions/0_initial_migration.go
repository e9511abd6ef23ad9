package versions

import (
	"log"

	"cmdb_platform/cmdb/schema"

	"gorm.io/gorm"
)

/*
 * The legacy plugin tables use hrzcm_* names with b_/j_ column prefixes and
 * integer user ids for the audit columns. These migrations rename tables and
 * columns into the new schema and drop anything gorm will recreate. Legacy
 * audit user ids reference the old tracker's user table and have no
 * counterpart here, so those columns are dropped rather than converted.
 */

func renameColumns(txn *gorm.DB, model interface{}, renames map[string]string) error {
	for oldName, newName := range renames {
		if err := txn.Migrator().RenameColumn(model, oldName, newName); err != nil {
			return err
		}
	}
	return nil
}

func dropLegacyAuditColumns(txn *gorm.DB, model interface{}) error {
	for _, col := range []string{"created_by", "updated_by"} {
		if err := txn.Migrator().DropColumn(model, col); err != nil {
			return err
		}
	}
	return nil
}

func baseDataRenames(extra map[string]string) map[string]string {
	renames := map[string]string{
		"b_key":       "key",
		"b_name_full": "name_full",
		"b_name_abbr": "name_abbr",
		"b_comment":   "comment",
		"b_url_doc":   "doc_url",
	}
	for oldName, newName := range extra {
		renames[oldName] = newName
	}
	return renames
}

func migrateHierarchy(txn *gorm.DB) error {
	if err := txn.Migrator().RenameTable("hrzcm_locat_hier", &schema.LocationHierarchy{}); err != nil {
		return err
	}
	renames := baseDataRenames(map[string]string{"j_level": "level"})
	if err := renameColumns(txn, &schema.LocationHierarchy{}, renames); err != nil {
		return err
	}
	return dropLegacyAuditColumns(txn, &schema.LocationHierarchy{})
}

func migrateLocation(txn *gorm.DB) error {
	if err := txn.Migrator().RenameTable("hrzcm_location", &schema.Location{}); err != nil {
		return err
	}
	renames := baseDataRenames(map[string]string{
		"j_type_id":     "type_id",
		"j_part_of1_id": "parent1_id",
		"j_part_of2_id": "parent2_id",
	})
	if err := renameColumns(txn, &schema.Location{}, renames); err != nil {
		return err
	}
	return dropLegacyAuditColumns(txn, &schema.Location{})
}

func migrateCiClass(txn *gorm.DB) error {
	if err := txn.Migrator().RenameTable("hrzcm_ci_class", &schema.CiClass{}); err != nil {
		return err
	}
	renames := baseDataRenames(map[string]string{
		"j_sort":           "sort",
		"j_subclass_of_id": "subclass_of_id",
	})
	if err := renameColumns(txn, &schema.CiClass{}, renames); err != nil {
		return err
	}
	return dropLegacyAuditColumns(txn, &schema.CiClass{})
}

func migrateLifecycleStatus(txn *gorm.DB) error {
	if err := txn.Migrator().RenameTable("hrzcm_lifecycle_status", &schema.LifecycleStatus{}); err != nil {
		return err
	}
	if err := renameColumns(txn, &schema.LifecycleStatus{}, baseDataRenames(nil)); err != nil {
		return err
	}
	return dropLegacyAuditColumns(txn, &schema.LifecycleStatus{})
}

func migrateCi(txn *gorm.DB) error {
	if err := txn.Migrator().RenameTable("hrzcm_ci", &schema.Ci{}); err != nil {
		return err
	}
	renames := baseDataRenames(map[string]string{
		"j_ci_class_id": "ci_class_id",
		"j_location_id": "location_id",
		"j_status_id":   "status_id",
		"b_producer":    "producer",
		"b_model":       "model",
		"b_tag_serial":  "tag_serial",
	})
	// CIs never had a key column.
	delete(renames, "b_key")
	if err := renameColumns(txn, &schema.Ci{}, renames); err != nil {
		return err
	}
	return dropLegacyAuditColumns(txn, &schema.Ci{})
}

func migrateExternalSystem(txn *gorm.DB) error {
	if err := txn.Migrator().RenameTable("hrzcm_ext_sys", &schema.ExternalSystem{}); err != nil {
		return err
	}
	renames := map[string]string{
		"j_location_default_id": "default_location_id",
		"b_url_ci_details_ext":  "ci_detail_url",
		"b_name_full":           "name_full",
		"b_name_abbr":           "name_abbr",
		"b_comment":             "comment",
		"b_url_doc":             "doc_url",
	}
	if err := renameColumns(txn, &schema.ExternalSystem{}, renames); err != nil {
		return err
	}
	// Legacy responsible user ids reference the old tracker's user table.
	// The column is recreated as uuid by AutoMigrate and must be
	// repopulated by an admin.
	if err := txn.Migrator().DropColumn(&schema.ExternalSystem{}, "j_redmine_user_id"); err != nil {
		return err
	}
	return dropLegacyAuditColumns(txn, &schema.ExternalSystem{})
}

func migrateCiExternalRef(txn *gorm.DB) error {
	if err := txn.Migrator().RenameTable("hrzcm_ci_ext", &schema.CiExternalRef{}); err != nil {
		return err
	}
	return renameColumns(txn, &schema.CiExternalRef{}, map[string]string{
		"j_ci_id":      "ci_id",
		"j_ext_sys_id": "ext_sys_id",
		"b_key_ext":    "ext_key",
	})
}

func migrateCiIssue(txn *gorm.DB) error {
	if err := txn.Migrator().RenameTable("hrzcm_ci_issues", &schema.CiIssue{}); err != nil {
		return err
	}
	// The legacy table carried a surrogate id, the new one keys on
	// (ci_id, issue_id) directly.
	if err := txn.Migrator().DropColumn(&schema.CiIssue{}, "id"); err != nil {
		return err
	}
	return txn.Migrator().DropColumn(&schema.CiIssue{}, "created_by")
}

func Migration_0_initial_migration(txn *gorm.DB) error {
	log.Println("performing initial migration from legacy plugin schema")

	if err := migrateHierarchy(txn); err != nil {
		return err
	}

	if err := migrateLocation(txn); err != nil {
		return err
	}

	if err := migrateCiClass(txn); err != nil {
		return err
	}

	if err := migrateLifecycleStatus(txn); err != nil {
		return err
	}

	if err := migrateCi(txn); err != nil {
		return err
	}

	if err := migrateExternalSystem(txn); err != nil {
		return err
	}

	if err := migrateCiExternalRef(txn); err != nil {
		return err
	}

	if err := migrateCiIssue(txn); err != nil {
		return err
	}

	err := txn.Migrator().AutoMigrate(schema.AllTables()...)
	if err != nil {
		return err
	}

	log.Println("initial migration from legacy plugin schema complete")

	return nil
}
