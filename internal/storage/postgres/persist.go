package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/openveris/declaration-crawler/internal/declaration"
)

// PersistDeclaration decomposes one raw declaration document into its
// normalized rows inside a single transaction. Any failure rolls the
// whole declaration back; no partial declaration is ever visible.
//
// Re-ingestion of an already-stored record id is harmless: the
// declarations upsert only touches mutable fields, and family and
// asset rows are written only when the upsert actually inserted, so a
// stale existence cache cannot duplicate child rows.
func (s *Store) PersistDeclaration(ctx context.Context, documentID string, raw json.RawMessage) error {
	doc, err := declaration.Parse(raw)
	if err != nil {
		return fmt.Errorf("declaration %s: %w", documentID, err)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	step0 := doc.ObjectStep(declaration.StepIntro)
	step1 := doc.ObjectStep(declaration.StepDeclarant)

	declarantID, err := s.resolveDeclarant(ctx, tx, step1)
	if err != nil {
		return fmt.Errorf("declaration %s: resolve declarant: %w", documentID, err)
	}

	declarationID, inserted, err := s.upsertDeclaration(ctx, tx, documentID, declarantID, step0, step1, raw)
	if err != nil {
		return fmt.Errorf("declaration %s: upsert: %w", documentID, err)
	}
	if !inserted {
		if err := tx.Commit(ctx); err != nil {
			return fmt.Errorf("declaration %s: commit: %w", documentID, err)
		}
		s.logger.Info("refreshed declaration", zap.String("document_id", documentID))
		return nil
	}

	familyIDs, err := s.saveFamilyMembers(ctx, tx, declarationID, doc.ArrayStep(declaration.StepFamily))
	if err != nil {
		return fmt.Errorf("declaration %s: family members: %w", documentID, err)
	}

	sections := []struct {
		name string
		save func(context.Context, pgx.Tx, uuid.UUID, []map[string]any, map[string]string) error
		step int
	}{
		{"real estate", s.saveRealEstate, declaration.StepRealEstate},
		{"valuables", s.saveValuables, declaration.StepValuables},
		{"memberships", s.saveMemberships, declaration.StepMemberships},
		{"vehicles", s.saveVehicles, declaration.StepVehicles},
		{"securities", s.saveSecurities, declaration.StepSecurities},
		{"corporate rights", s.saveCorporateRights, declaration.StepCorporateRights},
		{"intangible assets", s.saveIntangibleAssets, declaration.StepIntangibles},
		{"expenses", s.saveExpenses, declaration.StepExpenses},
		{"income sources", s.saveIncomeSources, declaration.StepIncome},
		{"liabilities", s.saveLiabilities, declaration.StepLiabilities},
		{"bank accounts", s.saveBankAccounts, declaration.StepBankAccounts},
	}
	for _, section := range sections {
		items := doc.ArrayStep(section.step)
		if len(items) == 0 {
			continue
		}
		if err := section.save(ctx, tx, declarationID, items, familyIDs); err != nil {
			return fmt.Errorf("declaration %s: %s: %w", documentID, section.name, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("declaration %s: commit: %w", documentID, err)
	}
	s.logger.Info("saved declaration", zap.String("document_id", documentID))
	return nil
}

// resolveDeclarant finds or creates the owning person. Identity match
// priority: tax number, then national registry number (unzr), then
// exact full name. A racing worker may create the same person
// concurrently; the rare duplicate is tolerated rather than locked
// against.
func (s *Store) resolveDeclarant(ctx context.Context, tx pgx.Tx, step1 map[string]any) (uuid.UUID, error) {
	lastname := declaration.String(step1, "lastname")
	firstname := declaration.String(step1, "firstname")
	middlename := declaration.String(step1, "middlename")
	taxNumber := declaration.String(step1, "taxNumber")
	unzr := declaration.String(step1, "unzr")

	var id uuid.UUID

	if taxNumber != nil {
		err := tx.QueryRow(ctx,
			`SELECT id FROM declarants WHERE tax_number = $1 LIMIT 1`, *taxNumber,
		).Scan(&id)
		if err == nil {
			return id, nil
		}
		if err != pgx.ErrNoRows {
			return uuid.Nil, fmt.Errorf("lookup by tax number: %w", err)
		}
	}

	if unzr != nil {
		err := tx.QueryRow(ctx,
			`SELECT id FROM declarants WHERE unzr = $1 LIMIT 1`, *unzr,
		).Scan(&id)
		if err == nil {
			return id, nil
		}
		if err != pgx.ErrNoRows {
			return uuid.Nil, fmt.Errorf("lookup by unzr: %w", err)
		}
	}

	err := tx.QueryRow(ctx,
		`SELECT id FROM declarants
		 WHERE UPPER(lastname) = UPPER($1)
		   AND UPPER(firstname) = UPPER($2)
		   AND UPPER(COALESCE(middlename, '')) = UPPER(COALESCE($3, ''))
		 LIMIT 1`,
		lastname, firstname, middlename,
	).Scan(&id)
	if err == nil {
		return id, nil
	}
	if err != pgx.ErrNoRows {
		return uuid.Nil, fmt.Errorf("lookup by name: %w", err)
	}

	id = uuid.New()
	_, err = tx.Exec(ctx,
		`INSERT INTO declarants (
			id, tax_number, unzr, lastname, firstname, middlename,
			changed_name, first_seen_at, last_updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, NOW(), NOW())`,
		id, taxNumber, unzr, lastname, firstname, middlename,
		declaration.BitFlag(step1, "changedName"),
	)
	if err != nil {
		return uuid.Nil, fmt.Errorf("insert declarant: %w", err)
	}
	s.logger.Info("created declarant",
		zap.Stringp("lastname", lastname),
		zap.Stringp("firstname", firstname),
	)
	return id, nil
}

// upsertDeclaration inserts the declaration row keyed by its source
// record id. A re-fetch of the same id updates only mutable fields;
// the inserted flag (xmax = 0 on a fresh row) tells the caller whether
// child rows still need to be written.
func (s *Store) upsertDeclaration(
	ctx context.Context,
	tx pgx.Tx,
	documentID string,
	declarantID uuid.UUID,
	step0, step1 map[string]any,
	raw json.RawMessage,
) (uuid.UUID, bool, error) {
	var (
		id       uuid.UUID
		inserted bool
	)
	err := tx.QueryRow(ctx,
		`INSERT INTO declarations (
			id, declarant_id, document_id, declaration_type, declaration_year,
			reporting_period_from, reporting_period_to, submitted_at,
			work_place, work_place_edrpou, work_post, post_type, post_category,
			responsible_position, public_person, corruption_affected,
			country_id, region, district, community, city, city_type,
			street, house_num, apartments_num, post_code,
			same_reg_living_address, raw_data, scraped_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15,
			$16, $17, $18, $19, $20, $21, $22, $23, $24, $25, $26, $27, $28, NOW(), NOW()
		)
		ON CONFLICT (document_id) DO UPDATE SET
			updated_at = NOW(),
			raw_data = EXCLUDED.raw_data,
			submitted_at = EXCLUDED.submitted_at
		RETURNING id, (xmax = 0) AS inserted`,
		uuid.New(),
		declarantID,
		documentID,
		declaration.Int(step0, "declarationType"),
		declaration.Year(step0),
		declaration.Date(step0, "declarationYearFrom"),
		declaration.Date(step0, "declarationYearTo"),
		declaration.Date(step0, "introDate"),
		declaration.String(step1, "workPlace"),
		declaration.String(step1, "workPlaceEdrpou"),
		declaration.String(step1, "workPost"),
		declaration.String(step1, "postType"),
		declaration.String(step1, "postCategory"),
		declaration.Flag(step1, "responsiblePosition"),
		declaration.Flag(step1, "public_person"),
		declaration.Flag(step1, "corruptionAffected"),
		declaration.Int(step1, "country"),
		declaration.String(step1, "region"),
		declaration.String(step1, "district"),
		declaration.String(step1, "community"),
		declaration.String(step1, "city"),
		declaration.String(step1, "cityType"),
		declaration.String(step1, "street"),
		declaration.String(step1, "houseNum"),
		declaration.String(step1, "apartmentsNum"),
		declaration.String(step1, "postCode"),
		declaration.BitFlag(step1, "sameRegLivingAddress"),
		[]byte(raw),
	).Scan(&id, &inserted)
	if err != nil {
		return uuid.Nil, false, err
	}
	return id, inserted, nil
}

// saveFamilyMembers inserts one row per named relative and returns the
// mapping from the document's internal relative id to the assigned row
// id, used for owner resolution in the asset sections.
//
// Cross-linking to an existing declarant goes through tax number and
// unzr only, never names, which are too ambiguous at family scope.
func (s *Store) saveFamilyMembers(
	ctx context.Context,
	tx pgx.Tx,
	declarationID uuid.UUID,
	members []map[string]any,
) (map[string]string, error) {
	familyIDs := make(map[string]string, len(members))

	for _, member := range members {
		taxNumber := declaration.String(member, "taxNumber")
		unzr := declaration.String(member, "unzr")

		var declarantID *uuid.UUID
		if taxNumber != nil {
			var id uuid.UUID
			err := tx.QueryRow(ctx,
				`SELECT id FROM declarants WHERE tax_number = $1 LIMIT 1`, *taxNumber,
			).Scan(&id)
			if err == nil {
				declarantID = &id
			} else if err != pgx.ErrNoRows {
				return nil, fmt.Errorf("cross-link by tax number: %w", err)
			}
		}
		if declarantID == nil && unzr != nil {
			var id uuid.UUID
			err := tx.QueryRow(ctx,
				`SELECT id FROM declarants WHERE unzr = $1 LIMIT 1`, *unzr,
			).Scan(&id)
			if err == nil {
				declarantID = &id
			} else if err != pgx.ErrNoRows {
				return nil, fmt.Errorf("cross-link by unzr: %w", err)
			}
		}

		rowID := uuid.New()
		_, err := tx.Exec(ctx,
			`INSERT INTO family_members (
				id, declaration_id, declarant_id, lastname, firstname, middlename,
				tax_number, unzr, passport, subject_relation, citizenship,
				country_id, region, district, community, city, city_type,
				street, house_num, apartments_num, post_code,
				raw_data, created_at
			) VALUES (
				$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11,
				$12, $13, $14, $15, $16, $17, $18, $19, $20, $21, $22, NOW()
			)`,
			rowID,
			declarationID,
			declarantID,
			declaration.String(member, "lastname"),
			declaration.String(member, "firstname"),
			declaration.String(member, "middlename"),
			taxNumber,
			unzr,
			declaration.String(member, "passport"),
			declaration.String(member, "subjectRelation"),
			declaration.Int(member, "citizenship"),
			declaration.Int(member, "country"),
			declaration.String(member, "region"),
			declaration.String(member, "district"),
			declaration.String(member, "community"),
			declaration.String(member, "city"),
			declaration.String(member, "cityType"),
			declaration.String(member, "street"),
			declaration.String(member, "houseNum"),
			declaration.String(member, "apartmentsNum"),
			declaration.String(member, "postCode"),
			mustJSON(member),
		)
		if err != nil {
			return nil, fmt.Errorf("insert family member: %w", err)
		}

		if internalID := declaration.String(member, "id"); internalID != nil {
			familyIDs[*internalID] = rowID.String()
		}
	}
	return familyIDs, nil
}

// mustJSON marshals a value decoded from JSON back to bytes. Such
// values always re-marshal.
func mustJSON(v any) []byte {
	b, err := json.Marshal(v)
	if err != nil {
		return []byte("null")
	}
	return b
}
