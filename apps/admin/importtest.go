package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/pkg/errors"

	"github.com/trezcool/mtihani/core/catalog"
)

// importTest loads a test definition from a JSON file and creates it.
func (cli *commandLine) importTest(path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return errors.Wrap(err, "reading test definition")
	}

	var nt catalog.NewTest
	if err := json.Unmarshal(raw, &nt); err != nil {
		return errors.Wrap(err, "parsing test definition")
	}
	if err := nt.Validate(cli.validate); err != nil {
		return err
	}

	test, err := cli.catSvc.Create(context.Background(), nt)
	if err != nil {
		return err
	}
	fmt.Printf("test %q imported as %s (%d questions, max score %d)\n",
		test.Title, test.ID, test.QuestionCount(), test.MaxScore())
	return nil
}
