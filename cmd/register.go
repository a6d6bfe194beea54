package main

import (
	"fmt"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/willregister/admin-cli/internal/model"
	"github.com/willregister/admin-cli/internal/upload"
)

var (
	regTestator  string
	regDOB       string
	regAddress   string
	regPostcode  string
	regLocation  string
	regSolicitor string
	regWillDate  string
	regExecutor  string
	regFirmID    string
	regForce     bool
)

// registerCmd registers one will directly. Unlike the bulk path this flow
// rejects exact name+DOB duplicates unless --force is passed.
var registerCmd = &cobra.Command{
	Use:   "register",
	Short: "Register a single will",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		if !upload.ValidDate(regDOB) {
			return eris.Errorf("register: date of birth %q is not a recognised date", regDOB)
		}
		if regWillDate != "" && !upload.ValidDate(regWillDate) {
			return eris.Errorf("register: will date %q is not a recognised date", regWillDate)
		}
		if !upload.ValidPostcode(regPostcode) {
			normalized := upload.NormalizePostcode(regPostcode)
			if !upload.ValidPostcode(normalized) {
				return eris.Errorf("register: %q is not a valid UK postcode", regPostcode)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Normalised postcode %q to %q\n", regPostcode, normalized)
			regPostcode = normalized
		}

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		dup, err := st.FindDuplicateWill(ctx, regTestator, regDOB)
		if err != nil {
			return eris.Wrap(err, "register: duplicate check")
		}
		if dup != nil && !regForce {
			return eris.Errorf("register: a will for %s (born %s) already exists (id %s); pass --force to register anyway",
				regTestator, regDOB, dup.ID)
		}

		saved, err := st.SaveWill(ctx, model.Will{
			TestatorName:  regTestator,
			DOB:           regDOB,
			Address:       regAddress,
			Postcode:      regPostcode,
			WillLocation:  regLocation,
			SolicitorName: regSolicitor,
			WillDate:      regWillDate,
			ExecutorName:  regExecutor,
			FirmID:        regFirmID,
			Status:        model.WillStatusActive,
			Source:        model.WillSourceSingle,
		})
		if err != nil {
			return eris.Wrap(err, "register: save will")
		}

		zap.L().Info("will registered",
			zap.String("will_id", saved.ID),
			zap.String("firm_id", saved.FirmID),
		)
		fmt.Fprintf(cmd.OutOrStdout(), "Registered will %s for %s\n", saved.ID, saved.TestatorName)
		return nil
	},
}

func init() {
	registerCmd.Flags().StringVar(&regTestator, "testator", "", "testator full name (required)")
	registerCmd.Flags().StringVar(&regDOB, "dob", "", "date of birth, DD/MM/YYYY (required)")
	registerCmd.Flags().StringVar(&regAddress, "address", "", "testator address (required)")
	registerCmd.Flags().StringVar(&regPostcode, "postcode", "", "UK postcode (required)")
	registerCmd.Flags().StringVar(&regLocation, "will-location", "", "where the will is held (required)")
	registerCmd.Flags().StringVar(&regSolicitor, "solicitor", "", "responsible solicitor")
	registerCmd.Flags().StringVar(&regWillDate, "will-date", "", "date the will was signed")
	registerCmd.Flags().StringVar(&regExecutor, "executor", "", "named executor")
	registerCmd.Flags().StringVar(&regFirmID, "firm-id", "", "owning firm ID (required)")
	registerCmd.Flags().BoolVar(&regForce, "force", false, "register even when a name+DOB duplicate exists")
	for _, f := range []string{"testator", "dob", "address", "postcode", "will-location", "firm-id"} {
		_ = registerCmd.MarkFlagRequired(f)
	}
	rootCmd.AddCommand(registerCmd)
}
