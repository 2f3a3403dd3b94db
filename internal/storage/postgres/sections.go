package postgres

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/openveris/declaration-crawler/internal/declaration"
)

// Section savers. Each one maps the loosely-typed items of one document
// section onto a typed table, skipping items that lack the fields the
// table requires. Every row keeps the item's full JSON alongside the
// typed columns so nothing is lost to the mapping.

// itemOwner resolves who owns one item from its rights-style array.
// Sections disagree on the array's key, so candidates are passed in
// priority order.
func itemOwner(item map[string]any, familyIDs map[string]string, keys ...string) (declaration.Owner, []any) {
	rights := declaration.Rights(item, keys...)
	return declaration.DecodeOwner(rights, familyIDs), rights
}

// familyRef converts an Owner into the nullable family_member_id column.
func familyRef(owner declaration.Owner) *string {
	if owner.Type == declaration.OwnerFamily && owner.FamilyID != "" {
		return &owner.FamilyID
	}
	return nil
}

// rightsJSON marshals a rights array for its JSONB column. An absent
// array is stored as an empty list, not SQL null.
func rightsJSON(rights []any) []byte {
	if rights == nil {
		return []byte("[]")
	}
	return mustJSON(rights)
}

// stringOr reads a string field with a fallback for absent or masked
// values.
func stringOr(item map[string]any, key, fallback string) string {
	if v := declaration.String(item, key); v != nil {
		return *v
	}
	return fallback
}

func (s *Store) saveRealEstate(
	ctx context.Context, tx pgx.Tx, declarationID uuid.UUID,
	items []map[string]any, familyIDs map[string]string,
) error {
	for _, item := range items {
		owner, rights := itemOwner(item, familyIDs, "rights")
		_, err := tx.Exec(ctx,
			`INSERT INTO real_estate (
				declaration_id, owner_type, family_member_id,
				object_type, total_area, ownership_type, ownership_date,
				rights, country_id, region, district, community, city, city_type,
				street, house_num, apartments_num, post_code,
				cost_at_acquisition, cost_currency, cost_type,
				reg_number, raw_data, created_at
			) VALUES (
				$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14,
				$15, $16, $17, $18, $19, $20, $21, $22, $23, NOW()
			)`,
			declarationID,
			owner.Type,
			familyRef(owner),
			declaration.String(item, "objectType"),
			declaration.Decimal(item, "totalArea"),
			declaration.FirstOwnershipType(rights),
			declaration.Date(item, "owningDate"),
			rightsJSON(rights),
			declaration.Int(item, "country"),
			declaration.String(item, "region"),
			declaration.String(item, "district"),
			declaration.String(item, "community"),
			declaration.String(item, "city"),
			declaration.String(item, "cityType"),
			declaration.String(item, "ua_street", "street"),
			declaration.String(item, "ua_houseNum", "houseNum"),
			declaration.String(item, "ua_apartmentsNum", "apartmentsNum"),
			declaration.String(item, "ua_postCode", "postCode"),
			declaration.Decimal(item, "cost_date_assessment"),
			"UAH",
			declaration.String(item, "object_cost_type"),
			declaration.String(item, "regNumber"),
			mustJSON(item),
		)
		if err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) saveValuables(
	ctx context.Context, tx pgx.Tx, declarationID uuid.UUID,
	items []map[string]any, familyIDs map[string]string,
) error {
	for _, item := range items {
		valuableType := declaration.String(item, "objectType")
		if valuableType == nil {
			s.logger.Warn("skipping valuable without objectType",
				zap.String("declaration_id", declarationID.String()))
			continue
		}
		owner, rights := itemOwner(item, familyIDs, "rights")
		_, err := tx.Exec(ctx,
			`INSERT INTO valuables (
				declaration_id, owner_type, family_member_id,
				valuable_type, description, total_value,
				cost_currency, ownership_type, ownership_date, rights,
				raw_data, created_at
			) VALUES (
				$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, NOW()
			)`,
			declarationID,
			owner.Type,
			familyRef(owner),
			*valuableType,
			declaration.String(item, "description"),
			declaration.Decimal(item, "costDate"),
			stringOr(item, "costCurrency", "UAH"),
			declaration.FirstOwnershipType(rights),
			declaration.Date(item, "owningDate"),
			rightsJSON(rights),
			mustJSON(item),
		)
		if err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) saveMemberships(
	ctx context.Context, tx pgx.Tx, declarationID uuid.UUID,
	items []map[string]any, familyIDs map[string]string,
) error {
	for _, item := range items {
		owner, _ := itemOwner(item, familyIDs, "rights")
		_, err := tx.Exec(ctx,
			`INSERT INTO memberships (
				declaration_id, owner_type, family_member_id,
				organization_name, organization_edrpou,
				organization_type, role, raw_data, created_at
			) VALUES (
				$1, $2, $3, $4, $5, $6, $7, $8, NOW()
			)`,
			declarationID,
			owner.Type,
			familyRef(owner),
			declaration.String(item, "organization_name"),
			declaration.String(item, "organization_edrpou"),
			declaration.String(item, "organization_type"),
			declaration.String(item, "position"),
			mustJSON(item),
		)
		if err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) saveVehicles(
	ctx context.Context, tx pgx.Tx, declarationID uuid.UUID,
	items []map[string]any, familyIDs map[string]string,
) error {
	for _, item := range items {
		objectType := declaration.String(item, "objectType")
		if objectType == nil {
			s.logger.Warn("skipping vehicle without objectType",
				zap.String("declaration_id", declarationID.String()))
			continue
		}
		owner, rights := itemOwner(item, familyIDs, "rights")
		_, err := tx.Exec(ctx,
			`INSERT INTO vehicles (
				declaration_id, owner_type, family_member_id,
				object_type, brand, model, year,
				reg_number, ownership_type, ownership_date, rights,
				raw_data, created_at
			) VALUES (
				$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, NOW()
			)`,
			declarationID,
			owner.Type,
			familyRef(owner),
			*objectType,
			declaration.String(item, "brand"),
			declaration.String(item, "model"),
			declaration.Int(item, "graduationYear"),
			declaration.String(item, "object_identificationNumber"),
			declaration.FirstOwnershipType(rights),
			declaration.Date(item, "owningDate"),
			rightsJSON(rights),
			mustJSON(item),
		)
		if err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) saveSecurities(
	ctx context.Context, tx pgx.Tx, declarationID uuid.UUID,
	items []map[string]any, familyIDs map[string]string,
) error {
	for _, item := range items {
		securityType := declaration.String(item, "objectType", "typeProperty")
		if securityType == nil {
			s.logger.Warn("skipping security without objectType",
				zap.String("declaration_id", declarationID.String()))
			continue
		}
		owner, rights := itemOwner(item, familyIDs, "rights", "persons")
		_, err := tx.Exec(ctx,
			`INSERT INTO securities (
				declaration_id, owner_type, family_member_id,
				security_type, issuer_name, issuer_edrpou,
				quantity, total_value, cost_currency,
				ownership_type, ownership_date, rights,
				raw_data, created_at
			) VALUES (
				$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, NOW()
			)`,
			declarationID,
			owner.Type,
			familyRef(owner),
			*securityType,
			declaration.String(item, "emitent", "emitent_ua_company_name"),
			declaration.String(item, "emitent_edrpou", "emitent_ua_company_code"),
			declaration.Decimal(item, "units", "amount"),
			declaration.Decimal(item, "cost"),
			stringOr(item, "currency", "UAH"),
			declaration.FirstOwnershipType(rights),
			declaration.Date(item, "owningDate"),
			rightsJSON(rights),
			mustJSON(item),
		)
		if err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) saveCorporateRights(
	ctx context.Context, tx pgx.Tx, declarationID uuid.UUID,
	items []map[string]any, familyIDs map[string]string,
) error {
	for _, item := range items {
		companyName := declaration.String(item, "company_name", "name")
		if companyName == nil {
			s.logger.Warn("skipping corporate right without company name",
				zap.String("declaration_id", declarationID.String()))
			continue
		}
		owner, rights := itemOwner(item, familyIDs, "rights")
		_, err := tx.Exec(ctx,
			`INSERT INTO corporate_rights (
				declaration_id, owner_type, family_member_id,
				company_name, company_edrpou, ownership_percent,
				ownership_type, ownership_date, rights,
				raw_data, created_at
			) VALUES (
				$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, NOW()
			)`,
			declarationID,
			owner.Type,
			familyRef(owner),
			*companyName,
			declaration.String(item, "company_code", "corporate_rights_company_code"),
			declaration.Decimal(item, "share_percent", "cost_percent"),
			declaration.FirstOwnershipType(rights),
			declaration.Date(item, "owningDate"),
			rightsJSON(rights),
			mustJSON(item),
		)
		if err != nil {
			return err
		}
	}
	return nil
}

// saveIntangibleAssets skips stray beneficial-owner and expense items
// that the registry sometimes files under this section. Those carry
// none of the section's fields and would only produce empty rows.
func (s *Store) saveIntangibleAssets(
	ctx context.Context, tx pgx.Tx, declarationID uuid.UUID,
	items []map[string]any, familyIDs map[string]string,
) error {
	for _, item := range items {
		assetType := declaration.String(item, "objectType")
		if assetType == nil {
			if _, ok := item["address_beneficial_owner"]; ok {
				continue
			}
			if _, ok := item["company_name_beneficial_owner"]; ok {
				continue
			}
			if _, ok := item["expenseType"]; ok {
				continue
			}
			if _, ok := item["expenseSpec"]; ok {
				continue
			}
			s.logger.Debug("skipping intangible asset without objectType",
				zap.String("declaration_id", declarationID.String()))
			continue
		}
		owner, rights := itemOwner(item, familyIDs, "rights")
		_, err := tx.Exec(ctx,
			`INSERT INTO intangible_assets (
				declaration_id, owner_type, family_member_id,
				asset_type, description, total_value,
				cost_currency, ownership_type, ownership_date, rights,
				raw_data, created_at
			) VALUES (
				$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, NOW()
			)`,
			declarationID,
			owner.Type,
			familyRef(owner),
			*assetType,
			declaration.String(item, "description"),
			declaration.Decimal(item, "cost"),
			stringOr(item, "currency", "UAH"),
			declaration.FirstOwnershipType(rights),
			declaration.Date(item, "owningDate"),
			rightsJSON(rights),
			mustJSON(item),
		)
		if err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) saveExpenses(
	ctx context.Context, tx pgx.Tx, declarationID uuid.UUID,
	items []map[string]any, familyIDs map[string]string,
) error {
	for _, item := range items {
		expenseType := declaration.String(item, "objectType")
		amount := declaration.Decimal(item, "costDateOrigin")
		if expenseType == nil || amount == nil {
			continue
		}
		owner, _ := itemOwner(item, familyIDs, "rights")
		_, err := tx.Exec(ctx,
			`INSERT INTO expenses (
				declaration_id, owner_type, family_member_id,
				expense_type, description,
				amount, currency, raw_data, created_at
			) VALUES (
				$1, $2, $3, $4, $5, $6, $7, $8, NOW()
			)`,
			declarationID,
			owner.Type,
			familyRef(owner),
			*expenseType,
			declaration.String(item, "descriptionObject"),
			*amount,
			stringOr(item, "currency", "UAH"),
			mustJSON(item),
		)
		if err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) saveIncomeSources(
	ctx context.Context, tx pgx.Tx, declarationID uuid.UUID,
	items []map[string]any, familyIDs map[string]string,
) error {
	for _, item := range items {
		owner, _ := itemOwner(item, familyIDs, "person")
		_, err := tx.Exec(ctx,
			`INSERT INTO income_sources (
				declaration_id, owner_type, family_member_id,
				income_type, income_source, source_edrpou,
				amount, currency,
				raw_data, created_at
			) VALUES (
				$1, $2, $3, $4, $5, $6, $7, $8, $9, NOW()
			)`,
			declarationID,
			owner.Type,
			familyRef(owner),
			declaration.String(item, "objectType"),
			declaration.String(item, "source"),
			declaration.String(item, "edrpou"),
			declaration.Decimal(item, "sizeIncome"),
			stringOr(item, "currency", "UAH"),
			mustJSON(item),
		)
		if err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) saveLiabilities(
	ctx context.Context, tx pgx.Tx, declarationID uuid.UUID,
	items []map[string]any, familyIDs map[string]string,
) error {
	for _, item := range items {
		liabilityType := declaration.String(item, "objectType")
		if liabilityType == nil {
			s.logger.Warn("skipping liability without objectType",
				zap.String("declaration_id", declarationID.String()))
			continue
		}
		owner, _ := itemOwner(item, familyIDs, "person_who_care")
		_, err := tx.Exec(ctx,
			`INSERT INTO liabilities (
				declaration_id, owner_type, family_member_id,
				liability_type, creditor_name, creditor_edrpou,
				outstanding_amount, currency, issue_date,
				raw_data, created_at
			) VALUES (
				$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, NOW()
			)`,
			declarationID,
			owner.Type,
			familyRef(owner),
			*liabilityType,
			declaration.String(item, "emitent_ua_company_name"),
			declaration.String(item, "emitent_ua_company_code"),
			declaration.Decimal(item, "credit_rest"),
			stringOr(item, "currency", "UAH"),
			declaration.Date(item, "dateOrigin"),
			mustJSON(item),
		)
		if err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) saveBankAccounts(
	ctx context.Context, tx pgx.Tx, declarationID uuid.UUID,
	items []map[string]any, familyIDs map[string]string,
) error {
	for _, item := range items {
		owner, _ := itemOwner(item, familyIDs, "person_who_care")
		_, err := tx.Exec(ctx,
			`INSERT INTO bank_accounts (
				declaration_id, owner_type, family_member_id,
				bank_name, bank_code, account_type,
				ownership_type, rights, raw_data, created_at
			) VALUES (
				$1, $2, $3, $4, $5, $6, $7, $8, $9, NOW()
			)`,
			declarationID,
			owner.Type,
			familyRef(owner),
			declaration.String(item, "establishment_ua_company_name"),
			declaration.String(item, "establishment_ua_company_code"),
			declaration.String(item, "establishment_type"),
			stringOr(item, "ownership_type", "Власність"),
			rightsJSON(declaration.Rights(item, "rights")),
			mustJSON(item),
		)
		if err != nil {
			return err
		}
	}
	return nil
}
