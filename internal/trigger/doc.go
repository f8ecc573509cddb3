// Package trigger は台本どおりにシャットダウンを要求する機能を提供する。
//
// Triggerは生成数または経過時間の条件を満たしたとき、Coordinatorに
// terminate/interruptを一度だけ送る。プリセットやテストで、実際の
// シグナルと同じ経路を再現するために使用される。
//
// # 使用例
//
//	trig := trigger.New(coord, trigger.Config{
//	    Mode:       shutdown.ModeInterrupt,
//	    AfterItems: 5,
//	})
//	prod.SetAfterPut(trig.Observe)
//	trig.Start(ctx)
//	defer trig.Stop()
package trigger
