package main

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/base64"
	"encoding/json"
	"encoding/pem"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/sealedbid/tender-service/internal/app"
	"github.com/sealedbid/tender-service/internal/config"
	"github.com/sealedbid/tender-service/internal/dtos"
	"github.com/sealedbid/tender-service/internal/keyexchange"
	"github.com/sealedbid/tender-service/internal/migrations"
	"github.com/sealedbid/tender-service/internal/repositories"
	"github.com/sealedbid/tender-service/internal/routes"
	"github.com/sealedbid/tender-service/internal/services"
	"github.com/sealedbid/tender-service/internal/utils"
	"github.com/sealedbid/tender-service/internal/vault"
)

var flagDBURL = &cli.StringFlag{
	Name:     "db-url",
	EnvVars:  []string{"DB_URL"},
	Usage:    "Postgres connection string",
	Required: true,
}

var flagServer = &cli.StringFlag{
	Name:  "server",
	Value: "http://127.0.0.1:8080",
	Usage: "Base URL of the tender service",
}

var flagAmount = &cli.StringFlag{
	Name:     "amount",
	Usage:    "Bid amount as a decimal string",
	Required: true,
}

var flagProject = &cli.StringFlag{
	Name:     "project",
	Usage:    "Tender ID the bid is for",
	Required: true,
}

var flagDocumentFile = &cli.StringFlag{
	Name:     "document-file",
	Usage:    "Supporting document; its contents are sent base64 encoded",
	Required: true,
}

var flagLegacy = &cli.BoolFlag{
	Name:  "legacy",
	Usage: "Use the passphrase envelope older browser clients produce",
}

var flagRSABits = &cli.IntFlag{
	Name:  "rsa-bits",
	Value: 2048,
}

func main() {
	utils.InitLogger("tenderctl")

	cliApp := &cli.App{
		Name:  "tenderctl",
		Usage: "operate and exercise the tender service",
		Commands: []*cli.Command{
			{
				Name:  "migrate",
				Usage: "apply pending database migrations",
				Flags: []cli.Flag{flagDBURL},
				Action: func(cCtx *cli.Context) error {
					return migrations.Up(cCtx.Context, cCtx.String(flagDBURL.Name))
				},
			},
			{
				Name:   "sweep",
				Usage:  "award every open tender whose deadline has passed, once",
				Action: runSweep,
			},
			{
				Name:  "keygen",
				Usage: "print a fresh bid master key and JWT signing key pair as env assignments",
				Flags: []cli.Flag{flagRSABits},
				Action: func(cCtx *cli.Context) error {
					return keygen(os.Stdout, cCtx.Int(flagRSABits.Name))
				},
			},
			{
				Name:  "seal",
				Usage: "run the key exchange against a server and print a bid submission body",
				Flags: []cli.Flag{flagServer, flagAmount, flagProject, flagDocumentFile, flagLegacy},
				Action: func(cCtx *cli.Context) error {
					doc, err := os.ReadFile(cCtx.String(flagDocumentFile.Name))
					if err != nil {
						return err
					}
					req, err := seal(
						cCtx.Context,
						cCtx.String(flagServer.Name),
						cCtx.String(flagProject.Name),
						cCtx.String(flagAmount.Name),
						base64.StdEncoding.EncodeToString(doc),
						cCtx.Bool(flagLegacy.Name),
					)
					if err != nil {
						return err
					}
					enc := json.NewEncoder(os.Stdout)
					enc.SetIndent("", "  ")
					return enc.Encode(req)
				},
			},
		},
	}

	if err := cliApp.Run(os.Args); err != nil {
		utils.Logger.Fatal(err)
	}
}

func runSweep(cCtx *cli.Context) error {
	cfg := config.LoadConfig()
	application, err := app.NewApp(cfg)
	if err != nil {
		return err
	}
	defer application.Close()

	bidVault, err := vault.NewBidVault(cfg.BidMasterKey)
	if err != nil {
		return err
	}
	award := services.NewAwardService(
		repositories.NewTenderRepository(application.DB),
		repositories.NewBidRepository(application.DB),
		bidVault,
		services.NewAuditService(application.AuditLogRepository()),
	)

	results, err := award.AdvanceExpiredTenders(cCtx.Context)
	for _, res := range results {
		winner := "none"
		if res.WinnerBidID != nil {
			winner = res.WinnerBidID.String()
		}
		fmt.Printf("tender %s: %d bid(s), winner %s\n", res.TenderID, res.BidCount, winner)
	}
	return err
}

func keygen(w io.Writer, rsaBits int) error {
	master := make([]byte, vault.MasterKeySize)
	if _, err := rand.Read(master); err != nil {
		return err
	}
	priv, err := rsa.GenerateKey(rand.Reader, rsaBits)
	if err != nil {
		return fmt.Errorf("failed to generate RSA key: %w", err)
	}
	privDER, err := x509.MarshalPKCS8PrivateKey(priv)
	if err != nil {
		return fmt.Errorf("failed to marshal private key: %w", err)
	}
	pubDER, err := x509.MarshalPKIXPublicKey(&priv.PublicKey)
	if err != nil {
		return fmt.Errorf("failed to marshal public key: %w", err)
	}
	privPEM := pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: privDER})
	pubPEM := pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: pubDER})

	_, err = fmt.Fprintf(w, "BID_MASTER_KEY_BASE64=%s\nRSA_PRIVATE_KEY_BASE64=%s\nRSA_PUBLIC_KEY_BASE64=%s\n",
		base64.StdEncoding.EncodeToString(master),
		base64.StdEncoding.EncodeToString(privPEM),
		base64.StdEncoding.EncodeToString(pubPEM),
	)
	return err
}

func seal(ctx context.Context, server, projectID, amount, document string, legacy bool) (*dtos.SubmitBidRequest, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, strings.TrimRight(server, "/")+routes.AuthDHKey, nil)
	if err != nil {
		return nil, err
	}
	resp, err := http.DefaultClient.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("dh-key: unexpected status %d", resp.StatusCode)
	}

	var keys dtos.DHKeyResponse
	if err := json.NewDecoder(resp.Body).Decode(&keys); err != nil {
		return nil, fmt.Errorf("dh-key: %w", err)
	}
	p, err := keyexchange.DecodeInt(keys.Prime)
	if err != nil {
		return nil, fmt.Errorf("dh-key prime: %w", err)
	}
	g, err := keyexchange.DecodeInt(keys.Generator)
	if err != nil {
		return nil, fmt.Errorf("dh-key generator: %w", err)
	}
	serverPub, err := keyexchange.DecodeInt(keys.PublicKey)
	if err != nil {
		return nil, fmt.Errorf("dh-key public value: %w", err)
	}

	params := keyexchange.Parameters{Name: "server", P: p, G: g}
	if err := params.Validate(); err != nil {
		return nil, err
	}
	session, err := keyexchange.NewClientSession(params, serverPub, nil)
	if err != nil {
		return nil, err
	}
	sealed, err := session.SealAmount(amount, legacy)
	if err != nil {
		return nil, err
	}
	return &dtos.SubmitBidRequest{
		ProjectID:          projectID,
		Amount:             sealed,
		SupportingDocument: document,
		ClientPublicKey:    keyexchange.EncodeInt(session.Public),
	}, nil
}
