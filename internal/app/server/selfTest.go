package server

import (
	"github.com/cockroachdb/errors"

	"vela/internal/app/file"
	"vela/internal/app/heap"
	"vela/internal/app/index/btree"
	"vela/internal/app/types"
)

// RunSelfTests exercises the storage engine and the B+Tree in the
// live environment using throwaway relations, the way the shell's
// test word always has.
func RunSelfTests(env *file.DbEnv) error {
	if err := testHeapStorage(env); err != nil {
		return errors.Wrap(err, "heap storage")
	}
	if err := testBTree(env); err != nil {
		return errors.Wrap(err, "btree")
	}
	return nil
}

func testHeapStorage(env *file.DbEnv) error {
	table := heap.NewHeapTable(env, "selftest_heap",
		types.ColumnNames{"a", "b"},
		types.ColumnAttributes{
			types.NewColumnAttribute(types.INT),
			types.NewColumnAttribute(types.TEXT),
		}, nil)
	if err := table.Create(); err != nil {
		return err
	}
	defer table.Drop()

	row := types.ValueDict{"a": types.IntValue(12), "b": types.TextValue("Hello!")}
	h, err := table.Insert(row)
	if err != nil {
		return err
	}
	got, err := table.Project(h)
	if err != nil {
		return err
	}
	if !got["a"].Equals(row["a"]) || !got["b"].Equals(row["b"]) {
		return errors.Newf("projected row %v does not match %v", got, row)
	}

	// Enough rows to spill onto a second block.
	for i := 0; i < 300; i++ {
		row := types.ValueDict{
			"a": types.IntValue(int32(i)),
			"b": types.TextValue("0123456789012345678901234567890123456789"),
		}
		if _, err := table.Insert(row); err != nil {
			return err
		}
	}
	handles, err := table.Select()
	if err != nil {
		return err
	}
	if len(handles) != 301 {
		return errors.Newf("expected 301 rows, got %d", len(handles))
	}
	if table.File().Last() < 2 {
		return errors.New("expected the table to spill onto a second block")
	}
	return nil
}

func testBTree(env *file.DbEnv) error {
	table := heap.NewHeapTable(env, "selftest_btree",
		types.ColumnNames{"a", "b"},
		types.ColumnAttributes{
			types.NewColumnAttribute(types.INT),
			types.NewColumnAttribute(types.INT),
		}, nil)
	if err := table.Create(); err != nil {
		return err
	}
	defer table.Drop()

	insert := func(a, b int32) error {
		_, err := table.Insert(types.ValueDict{"a": types.IntValue(a), "b": types.IntValue(b)})
		return err
	}
	if err := insert(12, 99); err != nil {
		return err
	}
	if err := insert(88, 101); err != nil {
		return err
	}
	for i := int32(0); i < 1000; i++ {
		if err := insert(100+i, -i); err != nil {
			return err
		}
	}

	index, err := btree.NewBTreeIndex(env, table, "selftest_index", types.ColumnNames{"a"}, true)
	if err != nil {
		return err
	}
	if err := index.Create(); err != nil {
		return err
	}
	defer index.Drop()

	check := func(a, b int32) error {
		handles, err := index.Lookup(types.ValueDict{"a": types.IntValue(a)})
		if err != nil {
			return err
		}
		if len(handles) != 1 {
			return errors.Newf("lookup a=%d returned %d handles", a, len(handles))
		}
		row, err := table.Project(handles[0])
		if err != nil {
			return err
		}
		if row["b"].N != b {
			return errors.Newf("lookup a=%d found b=%d, want %d", a, row["b"].N, b)
		}
		return nil
	}
	if err := check(12, 99); err != nil {
		return err
	}
	if err := check(88, 101); err != nil {
		return err
	}
	for i := int32(0); i < 1000; i++ {
		if err := check(100+i, -i); err != nil {
			return err
		}
	}

	missing, err := index.Lookup(types.ValueDict{"a": types.IntValue(44)})
	if err != nil {
		return err
	}
	if len(missing) != 0 {
		return errors.Newf("lookup a=44 should miss, got %d handles", len(missing))
	}
	return nil
}
