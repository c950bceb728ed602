package main

import (
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"golang.org/x/term"

	"github.com/trezcool/mtihani/core"
	"github.com/trezcool/mtihani/core/catalog"
	"github.com/trezcool/mtihani/core/session"
	"github.com/trezcool/mtihani/core/user"
)

var (
	readPasswordFunc = term.ReadPassword // mockable

	errHelp = errors.New("help provided")
)

type commandLine struct {
	db       *sql.DB
	conf     *core.Config
	validate *validator.Validate
	usrSvc   user.ServiceInterface
	catSvc   catalog.ServiceInterface
	sessSvc  session.ServiceInterface
}

func (cli *commandLine) printUsage() {
	fmt.Println("Usage:")
	fmt.Println("  createdb - create the app database and user if missing")
	fmt.Println("  migrate up|down|redo|status|version - run database migrations")
	fmt.Println("  adduser -name NAME -email EMAIL [-admin] [-teacher] - create or update a user; password prompted")
	fmt.Println("  resetpassword -email EMAIL - reset a user's password; password prompted")
	fmt.Println("  issuelink -test TEST_ID -email EMAIL [-from RFC3339] [-expires RFC3339] - issue a single-use test link")
	fmt.Println("  importtest -file PATH - import a test definition from a JSON file")
}

func (cli *commandLine) run(args []string) error {
	if len(args) < 2 {
		cli.printUsage()
		return errHelp
	}

	addUserCmd := flag.NewFlagSet("adduser", flag.ExitOnError)
	addUserName := addUserCmd.String("name", "", "The user's full name.")
	addUserEmail := addUserCmd.String("email", "", "The user's email. The password will be prompted next.")
	addUserAdmin := addUserCmd.Bool("admin", false, "Grant all roles.")
	addUserTeacher := addUserCmd.Bool("teacher", false, "Grant the teacher role.")

	resetPasswordCmd := flag.NewFlagSet("resetpassword", flag.ExitOnError)
	resetPasswordEmail := resetPasswordCmd.String("email", "", "The user's email. The password will be prompted next.")

	issueLinkCmd := flag.NewFlagSet("issuelink", flag.ExitOnError)
	issueLinkTest := issueLinkCmd.String("test", "", "The test ID.")
	issueLinkEmail := issueLinkCmd.String("email", "", "The recipient's email.")
	issueLinkFrom := issueLinkCmd.String("from", "", "Window opening time, RFC3339. Defaults to now.")
	issueLinkExpires := issueLinkCmd.String("expires", "", "Window closing time, RFC3339. Defaults to the configured TTL.")

	importTestCmd := flag.NewFlagSet("importtest", flag.ExitOnError)
	importTestFile := importTestCmd.String("file", "", "Path to the JSON test definition.")

	switch args[1] {
	case "migrate":
		if len(args) < 3 {
			cli.printUsage()
			return errHelp
		}
		return cli.migrate(args[2:])
	case "adduser":
		if err := addUserCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *addUserName == "" || *addUserEmail == "" {
			addUserCmd.Usage()
			return errHelp
		}
		pwd, err := cli.promptPassword()
		if err != nil {
			return err
		}
		if pwd == "" {
			addUserCmd.Usage()
			return errHelp
		}
		return cli.addUser(*addUserName, *addUserEmail, pwd, *addUserAdmin, *addUserTeacher)
	case "resetpassword":
		if err := resetPasswordCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *resetPasswordEmail == "" {
			resetPasswordCmd.Usage()
			return errHelp
		}
		pwd, err := cli.promptPassword()
		if err != nil {
			return err
		}
		if pwd == "" {
			resetPasswordCmd.Usage()
			return errHelp
		}
		return cli.resetPassword(*resetPasswordEmail, pwd)
	case "issuelink":
		if err := issueLinkCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *issueLinkTest == "" || *issueLinkEmail == "" {
			issueLinkCmd.Usage()
			return errHelp
		}
		from, err := parseTimeFlag(*issueLinkFrom)
		if err != nil {
			return err
		}
		expires, err := parseTimeFlag(*issueLinkExpires)
		if err != nil {
			return err
		}
		return cli.issueLink(*issueLinkTest, *issueLinkEmail, from, expires)
	case "importtest":
		if err := importTestCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *importTestFile == "" {
			importTestCmd.Usage()
			return errHelp
		}
		return cli.importTest(*importTestFile)
	default:
		cli.printUsage()
		return errHelp
	}
}

func (cli *commandLine) promptPassword() (string, error) {
	fmt.Print("Enter password:")
	pwd, err := readPasswordFunc(syscall.Stdin)
	fmt.Println()
	if err != nil {
		return "", err
	}
	return string(pwd), nil
}

func parseTimeFlag(val string) (time.Time, error) {
	if val == "" {
		return time.Time{}, nil
	}
	return time.Parse(time.RFC3339, val)
}
