package main

import (
	"fmt"

	pagedb "github.com/tuannm99/pagedb/internal"
	"github.com/tuannm99/pagedb/internal/tuple"
	"github.com/tuannm99/pagedb/internal/tx"
)

func main() {
	cfg := pagedb.DefaultConfig("./basedir")
	db, err := pagedb.NewDatabase(cfg, nil)
	if err != nil {
		panic(err)
	}
	defer db.Close()

	tbl, _ := db.CreateTable("users")
	pool := db.Pool()

	// T1 inserts and commits.
	t1 := tx.NewTransactionID()
	for i := 0; i < 3; i++ {
		_ = pool.InsertTuple(t1, tbl.TableID(), tuple.New([]byte(fmt.Sprintf("user-%d", i))))
	}
	_ = pool.TransactionComplete(t1, true)

	// T2 inserts and aborts; its row must not survive.
	t2 := tx.NewTransactionID()
	_ = pool.InsertTuple(t2, tbl.TableID(), tuple.New([]byte("ghost")))
	_ = pool.TransactionComplete(t2, false)

	// T3 scans what is visible.
	t3 := tx.NewTransactionID()
	count := 0
	_ = tbl.Scan(t3, func(t *tuple.Tuple) error {
		fmt.Println("row:", string(t.Data), "at", t.RID)
		count++
		return nil
	})
	_ = pool.TransactionComplete(t3, true)

	fmt.Println("visible rows:", count)
}
